package application

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ericfisherdev/artsengine/internal/domain/model"
)

// ParseScenes reads a scene sheet. The first record is a header whose
// column names (scene, prompt, industry, count, naics, aspect_ratio, style)
// are matched case-insensitively; prompt falls back to the first column.
// Records with a blank prompt are skipped and input with fewer than two
// records yields no scenes.
func ParseScenes(r io.Reader) ([]model.Scene, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	text := strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff"))
	if text == "" {
		return []model.Scene{}, nil
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("parse CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	scenes := []model.Scene{}
	for n := 1; ; n++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse CSV: %w", err)
		}
		if len(row) == 0 {
			continue
		}

		prompt := field(row, "prompt")
		if _, ok := cols["prompt"]; !ok {
			prompt = strings.TrimSpace(row[0])
		}
		if prompt == "" {
			continue
		}

		label := strconv.Itoa(n)
		if _, ok := cols["scene"]; ok {
			label = field(row, "scene")
		}

		scenes = append(scenes, model.Scene{
			ID:          model.NewSceneID(),
			Label:       label,
			Prompt:      prompt,
			Industry:    field(row, "industry"),
			Count:       field(row, "count"),
			NAICS:       field(row, "naics"),
			AspectRatio: field(row, "aspect_ratio"),
			Style:       field(row, "style"),
		})
	}
	return scenes, nil
}
