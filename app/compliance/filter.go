package compliance

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/lysyi3m/social-comb/app/config"
	"github.com/lysyi3m/social-comb/app/content"
)

type Status string

const (
	StatusAllowed          Status = "allowed"
	StatusBlocked          Status = "blocked"
	StatusNeedsAttribution Status = "needs_attribution"
)

// Verdict is the outcome of evaluating an item's reuse rights. A blocked
// verdict is terminal; the item never reaches scheduling.
type Verdict struct {
	Status      Status `json:"status"`
	Reason      string `json:"reason,omitempty"`
	Attribution string `json:"attribution,omitempty"`
}

// Filter evaluates reuse-rights rules in a fixed order: source/domain
// block-list first, then the license table, then default-deny. Content with
// unknown provenance is never auto-published. Verdicts are cached per item
// identity; evaluation is a pure function of the item otherwise.
type Filter struct {
	blockedSources map[string]bool
	blockedDomains map[string]bool
	licenses       map[string]config.LicenseRule

	mu    sync.RWMutex
	cache map[string]Verdict
}

func NewFilter(complianceCfg config.Compliance) *Filter {
	blockedSources := make(map[string]bool, len(complianceCfg.BlockedSources))
	for _, s := range complianceCfg.BlockedSources {
		blockedSources[strings.ToLower(s)] = true
	}
	blockedDomains := make(map[string]bool, len(complianceCfg.BlockedDomains))
	for _, d := range complianceCfg.BlockedDomains {
		blockedDomains[strings.ToLower(d)] = true
	}

	licenses := make(map[string]config.LicenseRule, len(complianceCfg.Licenses))
	for id, rule := range complianceCfg.Licenses {
		licenses[strings.ToLower(id)] = rule
	}

	return &Filter{
		blockedSources: blockedSources,
		blockedDomains: blockedDomains,
		licenses:       licenses,
		cache:          make(map[string]Verdict),
	}
}

func (f *Filter) Run(item content.Item) Verdict {
	identity := item.Identity()

	f.mu.RLock()
	cached, ok := f.cache[identity]
	f.mu.RUnlock()
	if ok {
		return cached
	}

	verdict := f.evaluate(item)

	f.mu.Lock()
	f.cache[identity] = verdict
	f.mu.Unlock()

	return verdict
}

func (f *Filter) evaluate(item content.Item) Verdict {
	if f.blockedSources[strings.ToLower(item.Source)] {
		return Verdict{
			Status: StatusBlocked,
			Reason: fmt.Sprintf("source '%s' is on the block-list", item.Source),
		}
	}

	if domain := hostOf(item.URL); domain != "" && f.blockedDomains[domain] {
		return Verdict{
			Status: StatusBlocked,
			Reason: fmt.Sprintf("domain '%s' is on the block-list", domain),
		}
	}

	license := strings.ToLower(strings.TrimSpace(item.License))
	if license == "" {
		return Verdict{Status: StatusBlocked, Reason: "unknown-rights"}
	}

	rule, ok := f.licenses[license]
	if !ok {
		return Verdict{Status: StatusBlocked, Reason: "unknown-rights"}
	}

	if rule.Status == string(StatusNeedsAttribution) {
		return Verdict{
			Status:      StatusNeedsAttribution,
			Reason:      fmt.Sprintf("license '%s' requires attribution", item.License),
			Attribution: renderAttribution(rule.Attribution, item),
		}
	}

	return Verdict{Status: StatusAllowed}
}

// CacheSize returns the number of cached verdicts.
func (f *Filter) CacheSize() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cache)
}

func renderAttribution(template string, item content.Item) string {
	if template == "" {
		template = "Source: {source} ({license}) {url}"
	}

	replacer := strings.NewReplacer(
		"{author}", item.Author,
		"{source}", item.Source,
		"{url}", item.URL,
		"{license}", item.License,
	)
	return strings.TrimSpace(replacer.Replace(template))
}

func hostOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
