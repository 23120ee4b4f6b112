package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/hkarel/telebot/internal/rules"
)

// globalConfigParceErrors counts triggers and chat entries skipped for
// being malformed, across the lifetime of the process. Exported via
// ConfigParceErrors for the admin HTTP surface to report as a metric.
var globalConfigParceErrors atomic.Int64

// ConfigParceErrors returns the running count of skipped malformed entries.
func ConfigParceErrors() int64 {
	return globalConfigParceErrors.Load()
}

// triggerDoc is the on-disk shape of one entry in triggers.yaml.
type triggerDoc struct {
	Name            string       `yaml:"name"`
	Active          bool         `yaml:"active"`
	Description     string       `yaml:"description"`
	SkipAdmins      bool         `yaml:"skip_admins"`
	WhiteUsers      []int64      `yaml:"white_users"`
	Inverse         bool         `yaml:"inverse"`
	ImmediatelyBan  bool         `yaml:"immediately_ban"`
	Kind            string       `yaml:"type"`
	WhiteList       []listDoc    `yaml:"white_list"`
	BlackList       []listDoc    `yaml:"black_list"`
	CaseInsensitive bool         `yaml:"case_insensitive"`
	WordList        []string     `yaml:"word_list"`
	Multiline       bool         `yaml:"multiline"`
	Analyze         string       `yaml:"analyze"`
	RegexpRemove    []string     `yaml:"regexp_remove"`
	RegexpList      []string     `yaml:"regexp_list"`
}

type listDoc struct {
	Host  string   `yaml:"host"`
	Paths []string `yaml:"paths"`
}

// triggersFile is the top-level shape of triggers.yaml.
type triggersFile struct {
	Triggers []triggerDoc `yaml:"triggers"`
}

// LoadTriggers reads path and returns every well-formed trigger. A
// malformed entry (unknown kind, bad name) is logged and skipped rather
// than failing the whole file; the skip is also counted in
// globalConfigParceErrors so an operator can alert on drift.
func LoadTriggers(path string, logger *slog.Logger) ([]*rules.Trigger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading triggers file %q: %w", path, err)
	}

	var doc triggersFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing triggers file %q: %w", path, err)
	}

	out := make([]*rules.Trigger, 0, len(doc.Triggers))
	for _, td := range doc.Triggers {
		trig, err := buildTrigger(td, logger)
		if err != nil {
			globalConfigParceErrors.Add(1)
			if logger != nil {
				logger.Error("skipping malformed trigger", slog.String("name", td.Name), slog.String("error", err.Error()))
			}
			continue
		}
		out = append(out, trig)
	}
	return out, nil
}

func buildTrigger(td triggerDoc, logger *slog.Logger) (*rules.Trigger, error) {
	if td.Name == "" {
		return nil, fmt.Errorf("trigger has no name")
	}

	// "link" is a literal synonym for "link_disable", not a distinct kind.
	kindStr := td.Kind
	if kindStr == "link" {
		kindStr = string(rules.KindLinkDisable)
	}
	kind := rules.Kind(kindStr)
	switch kind {
	case rules.KindLinkDisable, rules.KindLinkEnable, rules.KindWord, rules.KindRegexp:
	default:
		return nil, fmt.Errorf("trigger %q: unknown type %q", td.Name, td.Kind)
	}

	whiteUsers := make(map[int64]struct{}, len(td.WhiteUsers))
	for _, id := range td.WhiteUsers {
		whiteUsers[id] = struct{}{}
	}

	trig := &rules.Trigger{
		Name:            td.Name,
		Active:          td.Active,
		Description:     td.Description,
		SkipAdmins:      td.SkipAdmins,
		WhiteUsers:      whiteUsers,
		Inverse:         td.Inverse,
		ImmediatelyBan:  td.ImmediatelyBan,
		Kind:            kind,
		WhiteList:       buildListItems(td.WhiteList),
		BlackList:       buildListItems(td.BlackList),
		CaseInsensitive: td.CaseInsensitive,
		WordList:        td.WordList,
		Multiline:       td.Multiline,
	}

	switch td.Analyze {
	case "", string(rules.AnalyzeContent):
		trig.Analyze = rules.AnalyzeContent
	case string(rules.AnalyzeUsername):
		trig.Analyze = rules.AnalyzeUsername
	default:
		return nil, fmt.Errorf("trigger %q: unknown analyze %q", td.Name, td.Analyze)
	}

	if kind == rules.KindRegexp {
		trig.RegexpRemove = rules.CompileRegexpOptions(td.RegexpRemove, td.CaseInsensitive, td.Multiline, logger, td.Name, "regexp_remove")
		trig.RegexpList = rules.CompileRegexpOptions(td.RegexpList, td.CaseInsensitive, td.Multiline, logger, td.Name, "regexp_list")
		if len(trig.RegexpList) == 0 {
			return nil, fmt.Errorf("trigger %q: no usable patterns in regexp_list", td.Name)
		}
	}

	return trig, nil
}

func buildListItems(docs []listDoc) []rules.ListItem {
	items := make([]rules.ListItem, 0, len(docs))
	for _, d := range docs {
		if d.Host == "" {
			continue
		}
		paths := make([]string, 0, len(d.Paths))
		for _, p := range d.Paths {
			if !strings.HasPrefix(p, "/") {
				p = "/" + p
			}
			paths = append(paths, p)
		}
		items = append(items, rules.ListItem{Host: d.Host, Paths: paths})
	}
	return items
}
