package aggregate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/brettericmartin/teed-sub011/internal/product"
)

type signalKind int

const (
	signalCollection signalKind = iota
	signalStrongCollection
	signalSingle
	signalTutorial
)

type titlePattern struct {
	pattern *regexp.Regexp
	signal  string
	kind    signalKind
}

var titlePatterns = []titlePattern{
	{regexp.MustCompile(`(?i)what'?s in (the|my) bag`), "title: what's in my bag", signalStrongCollection},
	{regexp.MustCompile(`(?i)\bwitb\b`), "title: WITB", signalStrongCollection},
	{regexp.MustCompile(`(?i)\bsetup\b`), "title: setup", signalStrongCollection},
	{regexp.MustCompile(`(?i)\bmy\s+kit\b`), "title: my kit", signalStrongCollection},
	{regexp.MustCompile(`(?i)\btour\b`), "title: tour", signalStrongCollection},
	{regexp.MustCompile(`(?i)\bgear\b`), "title: gear", signalStrongCollection},
	{regexp.MustCompile(`(?i)\d+\s*(clubs|items|things|products|pieces)`), "title: numbered items", signalCollection},
	{regexp.MustCompile(`(?i)\d+\s*(best|top|favorite|must[- ]?have|essential)`), "title: numbered list", signalCollection},
	{regexp.MustCompile(`(?i)roundup|haul|collection|essentials`), "title: collection keywords", signalCollection},
	{regexp.MustCompile(`(?i)in (the|my) (golf\s*)?bag`), "title: in my bag", signalStrongCollection},
	{regexp.MustCompile(`(?i)(desk|office|studio|gaming|streaming)\s*setup`), "title: workspace setup", signalStrongCollection},
	{regexp.MustCompile(`(?i)(camera|audio|video|filming)\s*(setup|gear|kit)`), "title: camera/audio setup", signalStrongCollection},
	{regexp.MustCompile(`(?i)\bedc\b|everyday\s*carry`), "title: EDC", signalStrongCollection},
	{regexp.MustCompile(`(?i)review`), "title: review", signalSingle},
	{regexp.MustCompile(`(?i)unboxing`), "title: unboxing", signalSingle},
	{regexp.MustCompile(`(?i)hands[- ]?on`), "title: hands-on", signalSingle},
	{regexp.MustCompile(`(?i)is\s+it\s+worth`), "title: is it worth it", signalSingle},
	{regexp.MustCompile(`(?i)one\s+(year|month)\s+later`), "title: long-term review", signalSingle},
	{regexp.MustCompile(`(?i)\bhow\s+to\b|tutorial|step[- ]by[- ]step|\bdrills?\b|\blesson\b`), "title: tutorial", signalTutorial},
}

var comparisonPatterns = []titlePattern{
	{pattern: regexp.MustCompile(`(?i)\bvs\.?\b`), signal: "title: vs comparison"},
	{pattern: regexp.MustCompile(`(?i)versus`), signal: "title: versus"},
	{pattern: regexp.MustCompile(`(?i)compared?\s+to`), signal: "title: compared to"},
}

var transcriptPatterns = []titlePattern{
	{pattern: regexp.MustCompile(`(?i)let me show you each`), signal: "transcript: shows items sequentially"},
	{pattern: regexp.MustCompile(`(?i)starting with|first up|number one`), signal: "transcript: uses enumeration"},
	{pattern: regexp.MustCompile(`(?i)moving on to|next we have|next up`), signal: "transcript: sequential transitions"},
	{pattern: regexp.MustCompile(`(?i)let's go through|going through`), signal: "transcript: walkthrough language"},
	{pattern: regexp.MustCompile(`(?i)in my bag|what's in my|full setup`), signal: "transcript: bag or setup context"},
	{pattern: regexp.MustCompile(`(?i)all (\d+|fourteen|thirteen|twelve|eleven|ten)`), signal: "transcript: mentions total count"},
	{pattern: regexp.MustCompile(`(?i)every (club|item|piece|thing)`), signal: "transcript: emphasizes completeness"},
}

var productMentionPattern = regexp.MustCompile(`\b(?:this|my|the|using)\s+[A-Z][a-zA-Z0-9\s-]{3,20}\b`)

const (
	maxMentionEstimate      = 30
	transcriptSignalsNeeded = 2
	transcriptMentionsCount = 8
)

// transcriptCollection reports whether a transcript reads like a walkthrough
// of many items.
func transcriptCollection(transcript string) (bool, []string) {
	if strings.TrimSpace(transcript) == "" {
		return false, nil
	}
	var signals []string
	for _, p := range transcriptPatterns {
		if p.pattern.MatchString(transcript) {
			signals = append(signals, p.signal)
		}
	}
	mentions := min(len(productMentionPattern.FindAllString(transcript, -1)), maxMentionEstimate)
	return len(signals) >= transcriptSignalsNeeded || mentions >= transcriptMentionsCount, signals
}

// DetectContentType classifies content from its title, transcript, and the
// number of merged products. The returned signals explain the decision.
func DetectContentType(title, transcript string, productCount int) (product.ContentType, []string) {
	var (
		signals                    []string
		collection, strong, single int
		tutorial                   bool
	)
	for _, p := range titlePatterns {
		if !p.pattern.MatchString(title) {
			continue
		}
		signals = append(signals, p.signal)
		switch p.kind {
		case signalStrongCollection:
			strong++
			collection++
		case signalCollection:
			collection++
		case signalSingle:
			single++
		case signalTutorial:
			tutorial = true
		}
	}

	for _, p := range comparisonPatterns {
		if p.pattern.MatchString(title) {
			return product.ContentComparison, append(signals, p.signal)
		}
	}

	if likely, transcriptSignals := transcriptCollection(transcript); likely {
		signals = append(signals, transcriptSignals...)
		collection += len(transcriptSignals)
		if len(transcriptSignals) == 0 {
			collection++
			signals = append(signals, "transcript: many product mentions")
		}
	}

	switch {
	case strong > 0:
		return product.ContentRoundup, append(signals, "strong collection signal")
	case tutorial:
		return product.ContentTutorial, signals
	case productCount >= 4 && collection > 0:
		return product.ContentRoundup, append(signals, fmt.Sprintf("product count %d suggests a collection", productCount))
	case productCount >= 8:
		return product.ContentRoundup, append(signals, fmt.Sprintf("product count %d is high", productCount))
	case single > collection && productCount <= 3:
		return product.ContentSingleHero, signals
	case collection > 0:
		return product.ContentRoundup, signals
	case productCount >= 5:
		return product.ContentRoundup, append(signals, fmt.Sprintf("product count %d defaults to roundup", productCount))
	default:
		return product.ContentSingleHero, signals
	}
}
