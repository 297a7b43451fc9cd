// Package routing selects a proposer for each work order under a budget and
// decides how failed attempts are retried.
package routing

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

// DefaultSecurityKeywords mark tasks that touch security-sensitive code.
var DefaultSecurityKeywords = []string{
	"injection",
	"xss",
	"csrf",
	"authentication",
	"authorization",
	"encryption",
	"decrypt",
	"access control",
	"password",
	"credential",
	"secret",
	"oauth",
	"jwt",
	"permission",
	"rbac",
	"vulnerability",
}

// DefaultArchitectureKeywords mark tasks that change system structure.
var DefaultArchitectureKeywords = []string{
	"schema change",
	"breaking change",
	"migration",
	"database schema",
	"api contract",
	"public api",
	"data model change",
	"architecture",
}

// HardStopDetector flags task descriptions that must go to the
// high-capability proposer. Matching is case-insensitive substring.
type HardStopDetector struct {
	security     []string
	architecture []string
	mu           sync.RWMutex
}

// keywordFile is the YAML structure of a keyword override file.
type keywordFile struct {
	HardStop struct {
		Security     []string `yaml:"security_keywords"`
		Architecture []string `yaml:"architecture_keywords"`
	} `yaml:"hard_stop"`
}

// NewHardStopDetector creates a detector with the default keyword sets.
func NewHardStopDetector() *HardStopDetector {
	return &HardStopDetector{
		security:     append([]string{}, DefaultSecurityKeywords...),
		architecture: append([]string{}, DefaultArchitectureKeywords...),
	}
}

// NewHardStopDetectorWithKeywords creates a detector with explicit keyword
// sets. Empty sets fall back to the defaults.
func NewHardStopDetectorWithKeywords(security, architecture []string) *HardStopDetector {
	d := NewHardStopDetector()
	if len(security) > 0 {
		d.security = append([]string{}, security...)
	}
	if len(architecture) > 0 {
		d.architecture = append([]string{}, architecture...)
	}
	return d
}

// Required reports whether the description requires a hard stop.
func (d *HardStopDetector) Required(description string) bool {
	required, _ := d.Detect(description)
	return required
}

// Detect reports whether the description requires a hard stop and why.
func (d *HardStopDetector) Detect(description string) (bool, string) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	lower := strings.ToLower(description)
	for _, kw := range d.security {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true, "security keyword: " + kw
		}
	}
	for _, kw := range d.architecture {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true, "architecture keyword: " + kw
		}
	}
	return false, ""
}

// AddSecurityKeyword adds a keyword to the security set.
func (d *HardStopDetector) AddSecurityKeyword(keyword string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.security = append(d.security, keyword)
}

// AddArchitectureKeyword adds a keyword to the architecture set.
func (d *HardStopDetector) AddArchitectureKeyword(keyword string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.architecture = append(d.architecture, keyword)
}

// LoadKeywords appends keywords from a YAML file with a hard_stop section.
func (d *HardStopDetector) LoadKeywords(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var kf keywordFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return fmt.Errorf("parse keyword file %s: %w", path, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.security = append(d.security, kf.HardStop.Security...)
	d.architecture = append(d.architecture, kf.HardStop.Architecture...)
	return nil
}
