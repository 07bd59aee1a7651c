package models

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

var orderedLevels = []Level{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}

// Levels returns all CEFR levels, lowest first.
func Levels() []Level {
	out := make([]Level, len(orderedLevels))
	copy(out, orderedLevels)
	return out
}

// ParseLevel accepts a level name in any case.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unknown CEFR level %q", s)
	}
	return l, nil
}

func (l Level) Valid() bool {
	return l.Rank() >= 0
}

// Rank is the position of the level in the CEFR order, -1 if unknown.
func (l Level) Rank() int {
	for i, known := range orderedLevels {
		if known == l {
			return i
		}
	}
	return -1
}

type Module string

const (
	ModuleReading   Module = "reading"
	ModuleListening Module = "listening"
	ModuleWriting   Module = "writing"
	ModuleSpeaking  Module = "speaking"
)

var orderedModules = []Module{ModuleReading, ModuleListening, ModuleWriting, ModuleSpeaking}

func Modules() []Module {
	out := make([]Module, len(orderedModules))
	copy(out, orderedModules)
	return out
}

func ParseModule(s string) (Module, error) {
	m := Module(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown exam module %q", s)
	}
	return m, nil
}

func (m Module) Valid() bool {
	for _, known := range orderedModules {
		if known == m {
			return true
		}
	}
	return false
}

// ModuleConfig is the static timing and scoring setup of one module at one level.
type ModuleConfig struct {
	Duration  int `json:"duration" yaml:"duration"` // minutes
	Tasks     int `json:"tasks" yaml:"tasks"`
	MaxPoints int `json:"max_points" yaml:"max_points"`
}

// DurationSeconds is the countdown preset for a session.
func (c ModuleConfig) DurationSeconds() int {
	return c.Duration * 60
}

type LevelConfig struct {
	Level     Level                   `json:"level" yaml:"level"`
	Title     string                  `json:"title" yaml:"title"`
	PassScore int                     `json:"pass_score" yaml:"pass_score"`
	Modules   map[Module]ModuleConfig `json:"modules" yaml:"modules"`
}

func (c LevelConfig) Module(m Module) (ModuleConfig, bool) {
	mc, ok := c.Modules[m]
	return mc, ok
}

// Catalog is the immutable level/module table.
type Catalog struct {
	levels map[Level]LevelConfig
}

//go:embed levels.yaml
var defaultCatalogYAML []byte

var (
	defaultCatalogOnce sync.Once
	defaultCatalog     *Catalog
)

// DefaultCatalog returns the embedded level table. It panics if the embedded
// document is malformed, which can only happen at build time.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		c, err := ParseCatalog(defaultCatalogYAML)
		if err != nil {
			panic(fmt.Sprintf("models: embedded level catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// ParseCatalog reads a YAML level table and checks that every level defines
// every module.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Levels []LevelConfig `yaml:"levels"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse level catalog: %w", err)
	}

	c := &Catalog{levels: make(map[Level]LevelConfig, len(doc.Levels))}
	for _, lc := range doc.Levels {
		if !lc.Level.Valid() {
			return nil, fmt.Errorf("level catalog: unknown level %q", lc.Level)
		}
		if lc.PassScore < 0 || lc.PassScore > 100 {
			return nil, fmt.Errorf("level catalog: %s pass_score %d out of range", lc.Level, lc.PassScore)
		}
		for _, m := range orderedModules {
			mc, ok := lc.Modules[m]
			if !ok {
				return nil, fmt.Errorf("level catalog: %s is missing module %s", lc.Level, m)
			}
			if mc.Duration <= 0 || mc.Tasks <= 0 || mc.MaxPoints <= 0 {
				return nil, fmt.Errorf("level catalog: %s/%s needs positive duration, tasks and max_points", lc.Level, m)
			}
		}
		c.levels[lc.Level] = lc
	}
	return c, nil
}

func (c *Catalog) Level(l Level) (LevelConfig, bool) {
	lc, ok := c.levels[l]
	return lc, ok
}

// All returns the configured levels in CEFR order.
func (c *Catalog) All() []LevelConfig {
	out := make([]LevelConfig, 0, len(c.levels))
	for _, l := range orderedLevels {
		if lc, ok := c.levels[l]; ok {
			out = append(out, lc)
		}
	}
	return out
}
