// Package normalize turns the raw payload of a catalog-search tool call into
// comparable product candidates.
//
// There is no stable schema across seller integrations: some return a bare
// array, some wrap products in connection edges, some format prices and some
// ship (amount, currency) pairs three levels deep. Each field is therefore
// extracted by an ordered cascade of probes over an untyped JSON tree, and a
// candidate degrades gracefully rather than failing the whole payload.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/quibble-ai/quibble/internal/mcpclient"
)

// Product is one reconciled candidate. Title is always non-empty; ProductURL
// is always non-empty when the store base URL is known.
type Product struct {
	Title      string
	PriceText  string
	ImageURL   string
	ProductURL string
}

// Products extracts candidates from a raw tool result. Faulty results and
// unrecognizable payloads yield an empty slice.
func Products(res mcpclient.Result, storeBaseURL string) []Product {
	if !res.OK {
		return nil
	}
	payload := unwrapEnvelope(res.Body, res.Raw)
	if payload == nil {
		return nil
	}
	items := locateItems(payload)
	out := make([]Product, 0, len(items))
	for _, it := range items {
		m := asMap(it)
		if m == nil {
			continue
		}
		// connection shapes wrap each product in {node: {...}}
		if node := asMap(m["node"]); node != nil {
			m = node
		}
		p, ok := extract(m, storeBaseURL)
		if !ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

// unwrapEnvelope digs the actual payload out of the tool-result envelope:
// a structured content block first, then a JSON-parsable text block, then the
// envelope itself.
func unwrapEnvelope(body map[string]any, raw string) any {
	if body == nil {
		if raw == "" {
			return nil
		}
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return nil
		}
		return parsed
	}
	if sc, ok := body["structuredContent"]; ok && sc != nil {
		return sc
	}
	if blocks, ok := body["content"].([]any); ok {
		for _, b := range blocks {
			bm := asMap(b)
			if bm == nil {
				continue
			}
			if j, ok := bm["json"]; ok && j != nil {
				return j
			}
		}
		for _, b := range blocks {
			bm := asMap(b)
			if bm == nil {
				continue
			}
			text, _ := bm["text"].(string)
			if text == "" {
				continue
			}
			var parsed any
			if err := json.Unmarshal([]byte(text), &parsed); err == nil {
				return parsed
			}
		}
	}
	return body
}

// itemLocators is the ordered list of known container shapes. The first one
// yielding a non-empty array wins; adding a new upstream shape is one line.
var itemLocators = []func(any) []any{
	func(v any) []any { s, _ := v.([]any); return s },
	func(v any) []any { return digSlice(v, "products") },
	func(v any) []any { return digSlice(v, "items") },
	func(v any) []any { return digSlice(v, "results") },
	func(v any) []any { return digSlice(v, "data", "products") },
	func(v any) []any { return digSlice(v, "products", "edges") },
	func(v any) []any { return digSlice(v, "data", "products", "edges") },
	func(v any) []any { return digSlice(v, "catalog", "products") },
}

func locateItems(payload any) []any {
	for _, locate := range itemLocators {
		if items := locate(payload); len(items) > 0 {
			return items
		}
	}
	return nil
}

func extract(m map[string]any, storeBaseURL string) (Product, bool) {
	title := firstString(m, titleProbes)
	if title == "" {
		return Product{}, false
	}
	return Product{
		Title:      title,
		PriceText:  priceText(m),
		ImageURL:   firstString(m, imageProbes),
		ProductURL: productURL(m, storeBaseURL),
	}, true
}

// probe extracts one optional string from a candidate map.
type probe func(map[string]any) string

func firstString(m map[string]any, probes []probe) string {
	for _, p := range probes {
		if v := strings.TrimSpace(p(m)); v != "" {
			return v
		}
	}
	return ""
}

func field(keys ...string) probe {
	return func(m map[string]any) string {
		s, _ := dig(m, keys...).(string)
		return s
	}
}

var titleProbes = []probe{
	field("title"),
	field("name"),
	field("product_title"),
	field("label"),
}

var imageProbes = []probe{
	field("image"),
	field("image_url"),
	field("imageUrl"),
	field("image", "url"),
	field("image", "src"),
	field("featured_image", "url"),
	field("featuredImage", "url"),
	func(m map[string]any) string { return imageFromList(dig(m, "images")) },
	func(m map[string]any) string { return imageFromList(dig(m, "variants")) },
	func(m map[string]any) string {
		edges := digSlice(m, "images", "edges")
		if len(edges) == 0 {
			return ""
		}
		node := asMap(dig(asMap(edges[0]), "node"))
		if node == nil {
			return ""
		}
		s, _ := firstNonNil(node["url"], node["src"]).(string)
		return s
	},
}

func imageFromList(v any) string {
	items, _ := v.([]any)
	if len(items) == 0 {
		return ""
	}
	switch first := items[0].(type) {
	case string:
		return first
	case map[string]any:
		if s, ok := firstNonNil(first["url"], first["src"], dig(first, "image", "url")).(string); ok {
			return s
		}
	}
	return ""
}

// moneyProbes is the ordered list of known (amount, currency) nestings.
var moneyProbes = [][]string{
	{"price"},
	{"price_range", "min_variant_price"},
	{"priceRange", "minVariantPrice"},
	{"variants", "0", "price"},
}

func priceText(m map[string]any) string {
	// merchant-formatted strings are authoritative
	for _, key := range []string{"price", "formatted_price", "price_text", "displayPrice"} {
		if s, ok := m[key].(string); ok && looksLikePrice(s) {
			return strings.TrimSpace(s)
		}
	}
	for _, path := range moneyProbes {
		v := dig(m, path...)
		if v == nil {
			continue
		}
		if amount, ok := asNumber(v); ok {
			currency := str(firstNonNil(m["currency"], m["currency_code"], m["currencyCode"]))
			return FormatPrice(amount, currency)
		}
		pm := asMap(v)
		if pm == nil {
			continue
		}
		amount, ok := asNumber(firstNonNil(pm["amount"], pm["value"]))
		if !ok {
			continue
		}
		currency := str(firstNonNil(pm["currencyCode"], pm["currency_code"], pm["currency"]))
		return FormatPrice(amount, currency)
	}
	return ""
}

// looksLikePrice filters out bare SKU-ish strings that happen to sit in a
// price field; a formatted price has at least one digit.
func looksLikePrice(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

var currencySymbols = map[string]string{
	"USD": "$",
	"GBP": "£",
	"EUR": "€",
	"JPY": "¥",
	"AUD": "A$",
	"CAD": "C$",
}

// FormatPrice renders an amount with its currency. Whole numbers carry no
// decimals ("£129", not "£129.00"); fractional amounts keep exactly two.
// Unknown currency codes are prefixed verbatim with a space; an empty code
// leaves the number bare.
func FormatPrice(amount float64, currency string) string {
	var num string
	if amount == math.Trunc(amount) {
		num = strconv.FormatInt(int64(amount), 10)
	} else {
		num = fmt.Sprintf("%.2f", amount)
	}
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return num
	}
	if sym, ok := currencySymbols[code]; ok {
		return sym + num
	}
	return code + " " + num
}

var urlProbes = []probe{
	field("url"),
	field("product_url"),
	field("productUrl"),
	field("link"),
	field("onlineStoreUrl"),
}

func productURL(m map[string]any, storeBaseURL string) string {
	base := strings.TrimSuffix(storeBaseURL, "/")
	for _, p := range urlProbes {
		v := strings.TrimSpace(p(m))
		if v == "" {
			continue
		}
		if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			return v
		}
		if strings.HasPrefix(v, "/") && base != "" {
			return base + v
		}
	}
	if handle, ok := m["handle"].(string); ok && handle != "" && base != "" {
		return base + "/products/" + handle
	}
	return base
}

// ---- untyped-tree helpers ----

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// dig walks a path of map keys; a numeric segment indexes into a slice.
func dig(v any, keys ...string) any {
	cur := v
	for _, k := range keys {
		if idx, err := strconv.Atoi(k); err == nil {
			s, ok := cur.([]any)
			if !ok || idx < 0 || idx >= len(s) {
				return nil
			}
			cur = s[idx]
			continue
		}
		m := asMap(cur)
		if m == nil {
			return nil
		}
		cur = m[k]
	}
	return cur
}

func digSlice(v any, keys ...string) []any {
	s, _ := dig(v, keys...).([]any)
	return s
}

func firstNonNil(vs ...any) any {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
