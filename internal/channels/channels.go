// Package channels maps a traffic touch (referrer domain plus UTM and query
// attributes) to a named marketing channel. Classification is a pure function
// of the touch and an immutable list configuration loaded once at startup;
// the same rules can also be rendered to a SQL CASE expression so grouped
// reports classify inside the database.
package channels

import (
	"fmt"
	"strings"
	"sync"

	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed lists.yaml
var listsYAML []byte

// Lists holds the domain and query-parameter lists the classifier matches
// against. Values are code-owned constants, never request data, which is why
// they are the only strings allowed to be inlined into SQL text.
type Lists struct {
	SearchDomains   []string `yaml:"search_domains"`
	SocialDomains   []string `yaml:"social_domains"`
	EmailDomains    []string `yaml:"email_domains"`
	ShoppingDomains []string `yaml:"shopping_domains"`
	VideoDomains    []string `yaml:"video_domains"`
	PaidAdParams    []string `yaml:"paid_ad_params"`
}

var (
	defaultOnce  sync.Once
	defaultLists Lists
)

// Default returns the embedded list configuration, parsed once.
func Default() Lists {
	defaultOnce.Do(func() {
		if err := yaml.Unmarshal(listsYAML, &defaultLists); err != nil {
			panic(fmt.Sprintf("channels: embedded lists.yaml invalid: %v", err))
		}
	})
	return defaultLists
}

// Touch is one event considered as a traffic source.
type Touch struct {
	ReferrerDomain string
	URLQuery       string
	UTMMedium      string
	UTMSource      string
}

// Channel names. Search, social, shopping and video get a paid/organic prefix.
const (
	Direct    = "direct"
	PaidAds   = "paidAds"
	Referral  = "referral"
	Affiliate = "affiliate"
	SMS       = "sms"
	Email     = "email"
)

// Classify returns the channel name for a touch, or "" when no rule matches.
// Rules are evaluated in order; the first match wins.
func (l Lists) Classify(t Touch) string {
	referrer := strings.ToLower(t.ReferrerDomain)
	query := strings.ToLower(t.URLQuery)
	medium := strings.ToLower(t.UTMMedium)
	source := strings.ToLower(t.UTMSource)

	switch {
	case referrer == "" && query == "":
		return Direct
	case containsAny(query, l.PaidAdParams):
		return PaidAds
	case containsAny(medium, []string{"referral", "app", "link"}):
		return Referral
	case strings.Contains(medium, "affiliate"):
		return Affiliate
	case strings.Contains(medium, "sms") || strings.Contains(source, "sms"):
		return SMS
	case containsAny(referrer, l.SearchDomains) || strings.Contains(medium, "organic"):
		return mediumPrefix(medium) + "Search"
	case containsAny(referrer, l.SocialDomains):
		return mediumPrefix(medium) + "Social"
	case containsAny(referrer, l.EmailDomains) || strings.Contains(medium, "mail"):
		return Email
	case containsAny(referrer, l.ShoppingDomains) || strings.Contains(medium, "shop"):
		return mediumPrefix(medium) + "Shopping"
	case containsAny(referrer, l.VideoDomains) || strings.Contains(medium, "video"):
		return mediumPrefix(medium) + "Video"
	default:
		return ""
	}
}

// mediumPrefix derives the paid/organic prefix from utm_medium.
func mediumPrefix(medium string) string {
	if strings.HasPrefix(medium, "p") ||
		strings.Contains(medium, "ppc") ||
		strings.Contains(medium, "retargeting") ||
		strings.Contains(medium, "paid") {
		return "paid"
	}
	return "organic"
}

// containsAny reports whether value contains any list entry, both lowercased.
// List matching is substring-based on purpose: it mirrors the report queries,
// which use ILIKE '%entry%' against raw referrer domains.
func containsAny(value string, list []string) bool {
	if value == "" {
		return false
	}
	for _, entry := range list {
		if strings.Contains(value, strings.ToLower(entry)) {
			return true
		}
	}
	return false
}

// CaseSQL renders the classification rules as a SQL CASE expression over the
// named columns. The prefix column must already hold 'paid' or 'organic'
// (see PrefixSQL). Only the embedded constant lists are inlined.
func (l Lists) CaseSQL(prefixCol, referrerCol, queryCol, mediumCol, sourceCol string) string {
	var b strings.Builder

	b.WriteString("case\n")
	fmt.Fprintf(&b, "  when %s = '' and %s = '' then 'direct'\n", referrerCol, queryCol)
	fmt.Fprintf(&b, "  when %s then 'paidAds'\n", ilikeAnyClause(queryCol, l.PaidAdParams))
	fmt.Fprintf(&b, "  when %s then 'referral'\n", ilikeAnyClause(mediumCol, []string{"referral", "app", "link"}))
	fmt.Fprintf(&b, "  when %s ilike '%%affiliate%%' then 'affiliate'\n", mediumCol)
	fmt.Fprintf(&b, "  when %s ilike '%%sms%%' or %s ilike '%%sms%%' then 'sms'\n", mediumCol, sourceCol)
	fmt.Fprintf(&b, "  when %s or %s ilike '%%organic%%' then concat(%s, 'Search')\n",
		ilikeAnyClause(referrerCol, l.SearchDomains), mediumCol, prefixCol)
	fmt.Fprintf(&b, "  when %s then concat(%s, 'Social')\n", ilikeAnyClause(referrerCol, l.SocialDomains), prefixCol)
	fmt.Fprintf(&b, "  when %s or %s ilike '%%mail%%' then 'email'\n", ilikeAnyClause(referrerCol, l.EmailDomains), mediumCol)
	fmt.Fprintf(&b, "  when %s or %s ilike '%%shop%%' then concat(%s, 'Shopping')\n",
		ilikeAnyClause(referrerCol, l.ShoppingDomains), mediumCol, prefixCol)
	fmt.Fprintf(&b, "  when %s or %s ilike '%%video%%' then concat(%s, 'Video')\n",
		ilikeAnyClause(referrerCol, l.VideoDomains), mediumCol, prefixCol)
	b.WriteString("  else '' end")

	return b.String()
}

// PrefixSQL renders the paid/organic prefix derivation for a utm_medium column.
func PrefixSQL(mediumCol string) string {
	return fmt.Sprintf(
		"case when %s like 'p%%' or %s like '%%ppc%%' or %s like '%%retargeting%%' or %s like '%%paid%%' then 'paid' else 'organic' end",
		mediumCol, mediumCol, mediumCol, mediumCol)
}

// ilikeAnyClause builds "(col ilike '%a%' or col ilike '%b%')" from a
// code-owned constant list.
func ilikeAnyClause(col string, list []string) string {
	parts := make([]string, 0, len(list))
	for _, entry := range list {
		escaped := strings.ReplaceAll(entry, "'", "''")
		parts = append(parts, fmt.Sprintf("%s ilike '%%%s%%'", col, escaped))
	}
	return "(" + strings.Join(parts, " or ") + ")"
}
