// Package proposal normalises governance proposal payloads from Cosmos LCD
// (v1beta1 and v1) and the Namada indexer into a single record.
package proposal

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"gov-monitoring/internal/endpoint"
)

// APIVersion is the Cosmos gov REST API shape a payload came from.
type APIVersion string

const (
	V1Beta1 APIVersion = "v1beta1"
	V1      APIVersion = "v1"
)

const (
	StatusVotingPeriod       = "PROPOSAL_STATUS_VOTING_PERIOD"
	NamadaStatusVotingPeriod = "votingPeriod"

	PlaceholderTitle = "Proposal (title unavailable)"
	NamadaTitle      = "Namada Proposal"

	summaryTitleLimit = 100
)

// Flags mark fallbacks taken while parsing.
type Flags uint8

const (
	// FlagZeroID: neither id nor proposal_id could be read, ID defaulted to 0.
	FlagZeroID Flags = 1 << iota
	// FlagPlaceholderTitle: every title source was empty.
	FlagPlaceholderTitle
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// Proposal is a proposal in voting period on one network.
type Proposal struct {
	Network       string
	ID            uint64
	Title         string
	VotingEndTime int64
	Voted         bool
	// VoteResolved is set when the listing path already answered Voted.
	VoteResolved  bool
	Flags         Flags
}

// Key identifies a proposal across networks.
type Key struct {
	Network string
	ID      uint64
}

func (p Proposal) Key() Key { return Key{Network: p.Network, ID: p.ID} }

func (p Proposal) String() string {
	return fmt.Sprintf("%s#%d", p.Network, p.ID)
}

var errMissingEndTime = errors.New("missing voting end time")

// InVotingPeriod reports whether a Cosmos payload is in voting period.
func InVotingPeriod(raw map[string]any) bool {
	s, _ := raw["status"].(string)
	return s == StatusVotingPeriod
}

// NamadaInVotingPeriod accepts entries without a status, since the listing query
// already filters on it.
func NamadaInVotingPeriod(raw map[string]any) bool {
	s, ok := raw["status"].(string)
	return !ok || s == "" || strings.EqualFold(s, NamadaStatusVotingPeriod)
}

// ParseCosmos builds a Proposal from a v1beta1 or v1 LCD payload.
func ParseCosmos(raw map[string]any, version APIVersion, network string) (Proposal, error) {
	p := Proposal{Network: network}
	p.ID, p.Flags = parseID(raw)

	var title string
	if version == V1 {
		title = v1Title(raw)
	} else {
		title = v1beta1Title(raw)
	}
	if title == "" {
		title = PlaceholderTitle
		p.Flags |= FlagPlaceholderTitle
	}
	p.Title = title

	end, ok := raw["voting_end_time"].(string)
	if !ok || end == "" {
		return Proposal{}, parseFailure(p, errMissingEndTime)
	}
	t, err := time.Parse(time.RFC3339Nano, end)
	if err != nil {
		return Proposal{}, parseFailure(p, fmt.Errorf("voting_end_time: %w", err))
	}
	p.VotingEndTime = t.Unix()
	return p, nil
}

// ParseNamada builds a Proposal from a Namada indexer payload.
func ParseNamada(raw map[string]any, network string) (Proposal, error) {
	p := Proposal{Network: network}
	p.ID, p.Flags = parseID(raw)

	p.Title = namadaTitle(raw)
	if p.Title == "" {
		p.Title = PlaceholderTitle
		p.Flags |= FlagPlaceholderTitle
	}

	end, ok := CoerceID(raw["endTime"])
	if !ok {
		return Proposal{}, parseFailure(p, fmt.Errorf("endTime %v: %w", raw["endTime"], errMissingEndTime))
	}
	if end > math.MaxInt64 {
		return Proposal{}, parseFailure(p, fmt.Errorf("endTime %d out of range", end))
	}
	p.VotingEndTime = int64(end)
	return p, nil
}

func parseFailure(p Proposal, err error) error {
	return &endpoint.Failure{Kind: endpoint.MalformedResponse, Cause: fmt.Errorf("proposal %s: %w", p, err)}
}

func parseID(raw map[string]any) (uint64, Flags) {
	if id, ok := CoerceID(raw["id"]); ok {
		return id, 0
	}
	if id, ok := CoerceID(raw["proposal_id"]); ok {
		return id, 0
	}
	return 0, FlagZeroID
}

func v1Title(raw map[string]any) string {
	if s := str(raw["title"]); s != "" {
		return s
	}
	if meta := object(raw["metadata"]); meta != nil {
		if s := str(meta["title"]); s != "" {
			return s
		}
	}
	if s := truncateRunes(str(raw["summary"]), summaryTitleLimit); s != "" {
		return s
	}
	if msgs, ok := raw["messages"].([]any); ok && len(msgs) > 0 {
		if msg, ok := msgs[0].(map[string]any); ok {
			if content, ok := msg["content"].(map[string]any); ok {
				return str(content["title"])
			}
		}
	}
	return ""
}

func v1beta1Title(raw map[string]any) string {
	if content, ok := raw["content"].(map[string]any); ok {
		if s := str(content["title"]); s != "" {
			return s
		}
		if typ := str(content["@type"]); typ != "" {
			return TitleFromType(typ)
		}
	}
	return str(raw["title"])
}

// TitleFromType turns a message type URL into a readable name,
// e.g. "/atomone.gov.v1.MsgUpdateParams" becomes "Update Params".
func TitleFromType(typ string) string {
	i := strings.LastIndex(typ, ".")
	if i < 0 {
		return typ
	}
	name := strings.ReplaceAll(typ[i+1:], "Msg", "")
	name = strings.ReplaceAll(name, "Update", "Update ")
	return strings.TrimSpace(name)
}

func namadaTitle(raw map[string]any) string {
	if content := str(raw["content"]); content != "" {
		if doc := object(content); doc != nil {
			if s := str(doc["title"]); s != "" {
				return s
			}
		}
		return content
	}
	if s := str(raw["type"]); s != "" {
		return s
	}
	return NamadaTitle
}

// CoerceID reads a non-negative integer from a JSON value: json.Number, a numeric
// string ("5", "5.0") or an integral float (5.0).
func CoerceID(v any) (uint64, bool) {
	switch x := v.(type) {
	case json.Number:
		return parseUint(x.String())
	case string:
		return parseUint(strings.TrimSpace(x))
	case float64:
		return fromFloat(x)
	case int:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case int64:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case uint64:
		return x, true
	}
	return 0, false
}

func parseUint(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return fromFloat(f)
}

func fromFloat(f float64) (uint64, bool) {
	if math.IsNaN(f) || f < 0 || f != math.Trunc(f) || f >= math.MaxUint64 {
		return 0, false
	}
	return uint64(f), true
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// object returns v as a JSON object, decoding it first when v is a JSON string.
func object(v any) map[string]any {
	switch x := v.(type) {
	case map[string]any:
		return x
	case string:
		s := strings.TrimSpace(x)
		if !strings.HasPrefix(s, "{") {
			return nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil
		}
		return m
	}
	return nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
