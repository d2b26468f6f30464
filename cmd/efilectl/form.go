package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	efile "eviction-tracker/efiling/internal/efile/domain"
)

// loadForm reads a YAML form and inlines every attachment path, resolved relative to the form file.
func loadForm(path string) (efile.FormInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return efile.FormInput{}, fmt.Errorf("form: %w", err)
	}
	var form efile.FormInput
	if err := yaml.Unmarshal(raw, &form); err != nil {
		return efile.FormInput{}, fmt.Errorf("form: decode %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if form.Complaint != nil {
		if err := readAttachment(dir, form.Complaint); err != nil {
			return efile.FormInput{}, err
		}
	}
	for i := range form.Summons {
		if err := readAttachment(dir, &form.Summons[i]); err != nil {
			return efile.FormInput{}, err
		}
	}
	for i := range form.Affidavits {
		if err := readAttachment(dir, &form.Affidavits[i]); err != nil {
			return efile.FormInput{}, err
		}
	}
	return form, nil
}

func readAttachment(dir string, a *efile.Attachment) error {
	if a.Path == "" {
		return nil
	}
	p := a.Path
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	content, err := os.ReadFile(p)
	if err != nil {
		return fmt.Errorf("form: attachment %s: %w", a.Path, err)
	}
	a.Content = content
	if a.FileName == "" {
		a.FileName = filepath.Base(p)
	}
	return nil
}
