package mpv

import (
	"strconv"
	"strings"
)

// property is one mpv property assignment made before a file is loaded.
type property struct {
	Name  string
	Value string
}

// baseline values are reapplied on every load so directives of a previous
// media do not leak into the next one.
var baseline = []property{
	{Name: "hwdec", Value: "no"},
	{Name: "loop-file", Value: "no"},
}

// translateOptions turns engine directives ("--codec=all", ":no-loop",
// "--network-caching=1500") into mpv properties. Later directives win.
func translateOptions(opts []string) []property {
	props := append([]property(nil), baseline...)
	index := make(map[string]int, len(props))
	for i, p := range props {
		index[p.Name] = i
	}

	put := func(name, value string) {
		if i, ok := index[name]; ok {
			props[i].Value = value
			return
		}
		index[name] = len(props)
		props = append(props, property{Name: name, Value: value})
	}

	for _, raw := range opts {
		key, value, ok := splitOption(raw)
		if !ok {
			continue
		}
		switch {
		case strings.HasSuffix(key, "-dr"):
			// direct-rendering toggles of other decoders have no mpv equivalent
		case key == "codec":
			if value == "avcodec" {
				put("hwdec", "no")
			} else {
				put("hwdec", "auto-safe")
			}
		case key == "loop":
			if value == "no" {
				put("loop-file", "no")
			} else {
				put("loop-file", "inf")
			}
		case key == "network-caching":
			if ms, err := strconv.Atoi(value); err == nil {
				put("cache-secs", strconv.FormatFloat(float64(ms)/1000, 'f', -1, 64))
			}
		case key == "start-time":
			put("start", value)
		default:
			put(key, value)
		}
	}
	return props
}

// splitOption parses "--key=value", ":key", "--no-key" and friends.
func splitOption(raw string) (key, value string, ok bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimLeft(s, "-:")
	if s == "" {
		return "", "", false
	}
	if k, v, found := strings.Cut(s, "="); found {
		return k, v, k != ""
	}
	if k, found := strings.CutPrefix(s, "no-"); found {
		return k, "no", k != ""
	}
	return s, "yes", true
}
