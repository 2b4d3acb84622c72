package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
)

const timestampLayout = "1/2/2006, 3:04:05 PM"

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// formatNumber renders v with thousands separators and exactly decimals
// fraction digits. nil renders "-"; values that are not numbers render
// "NaN".
func formatNumber(v interface{}, decimals int) string {
	if v == nil {
		return "-"
	}
	f, ok := toFloat(v)
	if !ok {
		return "NaN"
	}
	return formatFixed(f, decimals)
}

func formatFixed(f float64, decimals int) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 0) {
		if f < 0 {
			return "-∞"
		}
		return "∞"
	}
	if decimals < 0 {
		decimals = 0
	}
	s := strconv.FormatFloat(math.Abs(f), 'f', decimals, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	if n, err := strconv.ParseInt(intPart, 10, 64); err == nil {
		intPart = humanize.Comma(n)
	} else if big, err := strconv.ParseFloat(intPart, 64); err == nil {
		// Past int64 the integer part is itself a float64 and groups exactly.
		intPart = humanize.Commaf(big)
	}
	out := intPart
	if frac != "" {
		out += "." + frac
	}
	// Negative values keep their sign even when they round to zero.
	if f < 0 {
		out = "-" + out
	}
	return out
}

// grcAmount rounds a wallet amount to the coin's 1e-8 unit.
func grcAmount(v float64) btcutil.Amount {
	a, err := btcutil.NewAmount(v)
	if err != nil {
		return 0
	}
	return a
}

func formatGRC(a btcutil.Amount) string {
	return formatFixed(a.ToBTC(), 8) + " GRC"
}

func formatBytes(b float64) string {
	if b == 0 {
		return "0 B"
	}
	i := 0
	if b > 0 {
		i = int(math.Floor(math.Log(b) / math.Log(1024)))
	}
	if i < 0 {
		i = 0
	}
	if i >= len(byteUnits) {
		i = len(byteUnits) - 1
	}
	v := b / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + byteUnits[i]
}

func formatTimestamp(ts int64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(ts, 0).Local().Format(timestampLayout)
}

// formatDuration renders seconds as "1d 2h 3m 4s", dropping zero parts.
func formatDuration(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) {
		return "-"
	}
	total := int64(math.Floor(seconds))
	days := total / 86400
	hours := (total % 86400) / 3600
	mins := (total % 3600) / 60
	secs := total % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if mins > 0 {
		parts = append(parts, fmt.Sprintf("%dm", mins))
	}
	if secs > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", secs))
	}
	return strings.Join(parts, " ")
}

func truncateString(s string, max int) string {
	if s == "" {
		return "-"
	}
	if max <= 0 {
		max = 20
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// safeStringify pretty-prints a JSON document with two-space indentation,
// keeping the key order the wallet sent.
func safeStringify(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}

func formatUptime(d time.Duration) string {
	if d < time.Second {
		return "just started"
	}
	return durafmt.Parse(d.Round(time.Second)).LimitFirstN(2).String()
}

// intervalLabel renders a refresh interval in milliseconds for the navbar
// select, e.g. 5000 -> "5s", 60000 -> "1m".
func intervalLabel(ms int) string {
	d := time.Duration(ms) * time.Millisecond
	if d >= time.Minute && d%time.Minute == 0 {
		return strconv.Itoa(int(d/time.Minute)) + "m"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "s"
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case btcutil.Amount:
		return n.ToBTC(), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func buildTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatNumber":    formatNumber,
		"formatGRC":       formatGRC,
		"formatBytes":     formatBytes,
		"formatTimestamp": formatTimestamp,
		"formatDuration":  formatDuration,
		"intervalLabel":   intervalLabel,
		"truncate":        truncateString,
		"uptime":          formatUptime,
		"statusClass": func(connected bool) string {
			if connected {
				return "connected"
			}
			return "error"
		},
		"json": func(v interface{}) template.JS {
			data, err := fastJSONMarshal(v)
			if err != nil {
				return template.JS("null")
			}
			return template.JS(data)
		},
	}
}
