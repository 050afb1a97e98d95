// Package filter implements the predicate chain `pilot query` runs over a
// recorded NDJSON event log, grounded on the teacher's internal/filter
// (Chain/OrChain over a Match(entry) predicate) but over domain.EventRecord
// fields (process, opcode, channel id) instead of free-text log lines.
package filter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vburojevic/pilot/internal/domain"
)

// Predicate determines whether an event record should be kept.
type Predicate interface {
	Match(rec *domain.EventRecord) bool
}

// Chain combines predicates with AND semantics, the teacher's Chain shape.
type Chain struct {
	predicates []Predicate
}

// NewChain builds a Chain from zero or more predicates.
func NewChain(predicates ...Predicate) *Chain {
	return &Chain{predicates: predicates}
}

// Add appends a predicate to the chain.
func (c *Chain) Add(p Predicate) { c.predicates = append(c.predicates, p) }

// Match returns true only if every predicate in the chain passes, or the
// chain is empty.
func (c *Chain) Match(rec *domain.EventRecord) bool {
	if c == nil {
		return true
	}
	for _, p := range c.predicates {
		if !p.Match(rec) {
			return false
		}
	}
	return true
}

// ProcessFilter keeps events whose process name is in the allowed set.
type ProcessFilter struct{ names map[string]struct{} }

// NewProcessFilter builds a ProcessFilter from a list of process names.
func NewProcessFilter(names []string) *ProcessFilter {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return &ProcessFilter{names: set}
}

// Match implements Predicate.
func (f *ProcessFilter) Match(rec *domain.EventRecord) bool {
	if f == nil {
		return true
	}
	_, ok := f.names[rec.Process]
	return ok
}

// OpcodeFilter keeps events whose opcode is in the allowed set.
type OpcodeFilter struct{ codes map[string]struct{} }

// NewOpcodeFilter builds an OpcodeFilter from a list of 3-character opcode
// mnemonics.
func NewOpcodeFilter(codes []string) *OpcodeFilter {
	if len(codes) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if c == "" {
			continue
		}
		set[strings.ToUpper(c[:1])+c[1:]] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	return &OpcodeFilter{codes: set}
}

// Match implements Predicate.
func (f *OpcodeFilter) Match(rec *domain.EventRecord) bool {
	if f == nil {
		return true
	}
	_, ok := f.codes[rec.Opcode]
	return ok
}

// ChannelFilter keeps events whose object id (channel or bundle id) is in
// the allowed set.
type ChannelFilter struct{ ids map[int]struct{} }

// NewChannelFilter builds a ChannelFilter from a list of decimal ids.
func NewChannelFilter(rawIDs []string) (*ChannelFilter, error) {
	if len(rawIDs) == 0 {
		return nil, nil
	}
	ids := make(map[int]struct{}, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return &ChannelFilter{ids: ids}, nil
}

// Match implements Predicate.
func (f *ChannelFilter) Match(rec *domain.EventRecord) bool {
	if f == nil {
		return true
	}
	_, ok := f.ids[rec.Object]
	return ok
}

// RawPattern keeps events whose verbatim wire text matches a compiled regex,
// the analogue of the teacher's --pattern flag over log messages.
type RawPattern struct{ re *regexp.Regexp }

// NewRawPattern compiles pattern into a RawPattern predicate.
func NewRawPattern(pattern string) (*RawPattern, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &RawPattern{re: re}, nil
}

// Match implements Predicate.
func (f *RawPattern) Match(rec *domain.EventRecord) bool {
	if f == nil {
		return true
	}
	return f.re.MatchString(rec.Raw)
}
