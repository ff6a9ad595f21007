package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/gobake/gobake"
)

var registerOnce sync.Once

// registerBuiltinSteps registers the step types pipeline definitions may
// reference. Safe to call more than once.
func registerBuiltinSteps() {
	registerOnce.Do(func() {
		gobake.RegisterStep("copy", newCopyStep)
		gobake.RegisterStep("filter", newFilterStep)
		gobake.RegisterStep("concat", newConcatStep)
	})
}

// newCopyStep copies one file to another.
// Params: input (tag), output (tag).
func newCopyStep(def gobake.StepDef) (gobake.Step, error) {
	in, err := paramTag(def, "input")
	if err != nil {
		return nil, err
	}
	out, err := paramTag(def, "output")
	if err != nil {
		return nil, err
	}

	fn := func(ctx context.Context, inputs, outputs gobake.PathMap) error {
		return copyFile(inputs[in], outputs[out])
	}
	return gobake.NewFuncStep(stepName(def, "copy"), "Copies the input file to the output file",
		gobake.NewTagSet(in), gobake.NewTagSet(out), fn), nil
}

// newFilterStep keeps only the lines containing a substring.
// Params: input (tag), output (tag), pattern (string).
func newFilterStep(def gobake.StepDef) (gobake.Step, error) {
	in, err := paramTag(def, "input")
	if err != nil {
		return nil, err
	}
	out, err := paramTag(def, "output")
	if err != nil {
		return nil, err
	}
	pattern, err := paramString(def, "pattern")
	if err != nil {
		return nil, err
	}

	fn := func(ctx context.Context, inputs, outputs gobake.PathMap) error {
		src, err := os.Open(inputs[in])
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := os.Create(outputs[out])
		if err != nil {
			return err
		}
		defer dst.Close()

		scanner := bufio.NewScanner(src)
		writer := bufio.NewWriter(dst)
		for scanner.Scan() {
			if strings.Contains(scanner.Text(), pattern) {
				if _, err := writer.WriteString(scanner.Text() + "\n"); err != nil {
					return err
				}
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		return writer.Flush()
	}
	return gobake.NewFuncStep(stepName(def, "filter"), "Keeps lines containing the pattern",
		gobake.NewTagSet(in), gobake.NewTagSet(out), fn), nil
}

// newConcatStep concatenates several files in declared order.
// Params: inputs (list of tags), output (tag).
func newConcatStep(def gobake.StepDef) (gobake.Step, error) {
	ins, err := paramTagList(def, "inputs")
	if err != nil {
		return nil, err
	}
	out, err := paramTag(def, "output")
	if err != nil {
		return nil, err
	}

	fn := func(ctx context.Context, inputs, outputs gobake.PathMap) error {
		dst, err := os.Create(outputs[out])
		if err != nil {
			return err
		}
		defer dst.Close()

		for _, tag := range ins {
			src, err := os.Open(inputs[tag])
			if err != nil {
				return err
			}
			_, err = io.Copy(dst, src)
			src.Close()
			if err != nil {
				return err
			}
		}
		return nil
	}
	return gobake.NewFuncStep(stepName(def, "concat"), "Concatenates the inputs in order",
		gobake.NewTagSet(ins...), gobake.NewTagSet(out), fn), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func stepName(def gobake.StepDef, fallback string) string {
	if def.Name != "" {
		return def.Name
	}
	return fallback
}

func paramString(def gobake.StepDef, key string) (string, error) {
	raw, ok := def.Params[key]
	if !ok {
		return "", fmt.Errorf("step %q: missing required param %q", def.ID, key)
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", fmt.Errorf("step %q: param %q must be a non-empty string", def.ID, key)
	}
	return value, nil
}

func paramTag(def gobake.StepDef, key string) (gobake.Tag, error) {
	value, err := paramString(def, key)
	if err != nil {
		return "", err
	}
	return gobake.Tag(value), nil
}

func paramTagList(def gobake.StepDef, key string) ([]gobake.Tag, error) {
	raw, ok := def.Params[key]
	if !ok {
		return nil, fmt.Errorf("step %q: missing required param %q", def.ID, key)
	}
	items, ok := raw.([]interface{})
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("step %q: param %q must be a non-empty list", def.ID, key)
	}

	tags := make([]gobake.Tag, 0, len(items))
	for _, item := range items {
		value, ok := item.(string)
		if !ok || value == "" {
			return nil, fmt.Errorf("step %q: param %q must contain non-empty strings", def.ID, key)
		}
		tags = append(tags, gobake.Tag(value))
	}
	return tags, nil
}
