package admin

import (
	"net/url"
	"sort"
	"strings"

	settings "github.com/goliatone/go-settings"
)

type submission struct {
	action   string
	save     bool
	reset    bool
	resetAll bool
	values   settings.Values
}

func (s submission) valid() bool {
	return s.action == UpdateAction && (s.save || s.reset || s.resetAll)
}

// parseSubmission splits a posted form into the requested operations and
// the submitted values. Keys ending in [] become lists and keys of the form
// name[part] are collected into a map under name.
func parseSubmission(form url.Values) submission {
	sub := submission{
		action: form.Get("action"),
		save:   form.Get(ButtonSubmit) != "",
		values: settings.Values{},
	}
	_, sub.reset = form[ButtonSubmitDefault]
	_, sub.resetAll = form[ButtonSubmitAllDefault]

	keys := make([]string, 0, len(form))
	for key := range form {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		switch key {
		case "action", NonceField, ButtonSubmit, ButtonSubmitDefault, ButtonSubmitAllDefault:
			continue
		}
		posted := form[key]
		if len(posted) == 0 {
			continue
		}
		if name, ok := strings.CutSuffix(key, "[]"); ok {
			list := make([]any, 0, len(posted))
			for _, v := range posted {
				list = append(list, v)
			}
			sub.values[name] = list
			continue
		}
		if name, part, ok := splitPart(key); ok {
			parts, _ := sub.values[name].(map[string]any)
			if parts == nil {
				parts = map[string]any{}
				sub.values[name] = parts
			}
			parts[part] = posted[0]
			continue
		}
		sub.values[key] = posted[0]
	}
	return sub
}

func splitPart(key string) (name, part string, ok bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return "", "", false
	}
	part = key[open+1 : len(key)-1]
	if part == "" || strings.ContainsAny(part, "[]") {
		return "", "", false
	}
	return key[:open], part, true
}
