package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gov-monitoring/internal/config"
	"gov-monitoring/internal/endpoint"
	"gov-monitoring/internal/logger"
	"gov-monitoring/internal/metrics"
	"gov-monitoring/internal/proposal"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	operator = "cosmosvaloper1e859xaue4k2jzqw20cv6l7p3tmc378pc3k8g2u"
	voter    = "cosmos1e859xaue4k2jzqw20cv6l7p3tmc378pc5znax0"
)

// lcd is a fake REST gateway answering by request URI.
type lcd struct {
	*httptest.Server
	mu     sync.Mutex
	routes map[string]func(w http.ResponseWriter)
	hits   []string
}

func newLCD(t *testing.T) *lcd {
	l := &lcd{routes: map[string]func(w http.ResponseWriter){}}
	l.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.mu.Lock()
		l.hits = append(l.hits, r.URL.RequestURI())
		h, ok := l.routes[r.URL.RequestURI()]
		l.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotImplemented)
			fmt.Fprint(w, `{"code":12,"message":"Not Implemented"}`)
			return
		}
		h(w)
	}))
	t.Cleanup(l.Close)
	return l
}

func (l *lcd) handle(uri string, status int, body string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.routes[uri] = func(w http.ResponseWriter) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}
}

func (l *lcd) hang(uri string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.routes[uri] = func(w http.ResponseWriter) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, `{}`)
	}
}

func (l *lcd) Hits() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.hits...)
}

const (
	v1beta1List = "/cosmos/gov/v1beta1/proposals?proposal_status=2&pagination.limit=100"
	v1List      = "/cosmos/gov/v1/proposals?proposal_status=2&pagination.limit=100"
)

func cosmosDescriptor(endpoints ...string) config.NetworkDescriptor {
	return config.NetworkDescriptor{
		Name:         "A",
		Family:       config.FamilyStandard,
		GovPrefix:    "cosmos",
		Endpoints:    endpoints,
		Validator:    operator,
		Bech32Prefix: "cosmos",
	}
}

func newTestProvider(t *testing.T, d config.NetworkDescriptor, m *metrics.Metrics) Provider {
	t.Helper()
	client := endpoint.NewClient(nil, "", m)
	p, err := New(d, client, Options{RequestTimeout: 100 * time.Millisecond, NamadaTimeout: 100 * time.Millisecond}, logger.Nop(), m)
	require.NoError(t, err)
	return p
}

const v1beta1Body = `{"proposals":[
	{"proposal_id":"7","status":"PROPOSAL_STATUS_VOTING_PERIOD","content":{"title":"Raise staking cap"},"voting_end_time":"2025-01-01T00:00:00Z"},
	{"proposal_id":"6","status":"PROPOSAL_STATUS_PASSED","content":{"title":"Old"},"voting_end_time":"2024-01-01T00:00:00Z"}
]}`

func TestAccountAddress(t *testing.T) {
	got, err := AccountAddress(operator, "cosmos")
	require.NoError(t, err)
	require.Equal(t, voter, got)

	got, err = AccountAddress("atonevaloper1e859xaue4k2jzqw20cv6l7p3tmc378pcclyn60", "atone")
	require.NoError(t, err)
	require.Equal(t, "atone1e859xaue4k2jzqw20cv6l7p3tmc378pc6z06sh", got)

	_, err = AccountAddress("cosmosvaloper1notbech32", "cosmos")
	require.Error(t, err)
}

func TestNewRejectsBadOperator(t *testing.T) {
	d := cosmosDescriptor("http://unused")
	d.Validator = "garbage"
	_, err := New(d, endpoint.NewClient(nil, "", nil), Options{}, logger.Nop(), nil)
	require.ErrorContains(t, err, "decode operator address")

	d.Family = "other"
	_, err = New(d, endpoint.NewClient(nil, "", nil), Options{}, logger.Nop(), nil)
	require.ErrorContains(t, err, "unsupported family")
}

func TestCosmosListFallsBackAcrossEndpoints(t *testing.T) {
	e1, e2, e3 := newLCD(t), newLCD(t), newLCD(t)
	e1.handle(v1beta1List, http.StatusInternalServerError, `{"code":13,"message":"internal"}`)
	e1.handle(v1List, http.StatusInternalServerError, `oops`)
	e2.handle(v1beta1List, http.StatusOK, v1beta1Body)
	e3.handle(v1beta1List, http.StatusOK, v1beta1Body)

	m := metrics.New()
	p := newTestProvider(t, cosmosDescriptor(e1.URL, e2.URL, e3.URL), m)
	props, err := p.ListProposals(context.Background())
	require.NoError(t, err)
	require.Equal(t, []proposal.Proposal{{Network: "A", ID: 7, Title: "Raise staking cap", VotingEndTime: 1735689600}}, props)

	require.Equal(t, []string{v1beta1List, v1List}, e1.Hits())
	require.Equal(t, []string{v1beta1List}, e2.Hits())
	require.Empty(t, e3.Hits(), "endpoints after the first success are never called")
	require.Equal(t, 1.0, testutil.ToFloat64(m.ListingResults.WithLabelValues("A", "ok")))
}

func TestCosmosListFallsBackToV1(t *testing.T) {
	e1 := newLCD(t)
	e1.handle(v1beta1List, http.StatusBadRequest, `{"code":3,"message":"can't convert a gov/v1 Proposal to gov/v1beta1 Proposal"}`)
	e1.handle(v1List, http.StatusOK, `{"proposals":[
		{"id":"12","status":"PROPOSAL_STATUS_VOTING_PERIOD","title":"Upgrade v20","voting_end_time":"2025-02-01T00:00:00Z"}
	]}`)

	p := newTestProvider(t, cosmosDescriptor(e1.URL), nil)
	props, err := p.ListProposals(context.Background())
	require.NoError(t, err)
	require.Len(t, props, 1)
	require.Equal(t, uint64(12), props[0].ID)
	require.Equal(t, "Upgrade v20", props[0].Title)
	require.Equal(t, []string{v1beta1List, v1List}, e1.Hits())
}

func TestCosmosListCustomGovPrefix(t *testing.T) {
	e1 := newLCD(t)
	e1.handle("/atomone/gov/v1beta1/proposals?proposal_status=2&pagination.limit=100", http.StatusOK, v1beta1Body)
	d := cosmosDescriptor(e1.URL)
	d.GovPrefix = "atomone"
	props, err := newTestProvider(t, d, nil).ListProposals(context.Background())
	require.NoError(t, err)
	require.Len(t, props, 1)
}

func TestCosmosListEmptyIsNotAFailure(t *testing.T) {
	e1, e2 := newLCD(t), newLCD(t)
	e1.handle(v1beta1List, http.StatusOK, `{"proposals":[]}`)
	e1.handle(v1List, http.StatusOK, `{"proposals":[]}`)
	e2.handle(v1beta1List, http.StatusOK, `{"proposals":[]}`)
	e2.handle(v1List, http.StatusOK, `{"proposals":[]}`)

	m := metrics.New()
	props, err := newTestProvider(t, cosmosDescriptor(e1.URL, e2.URL), m).ListProposals(context.Background())
	require.NoError(t, err)
	require.Empty(t, props)
	require.Len(t, append(e1.Hits(), e2.Hits()...), 4, "one attempt per endpoint and version")
	require.Equal(t, 1.0, testutil.ToFloat64(m.ListingResults.WithLabelValues("A", "empty")))
}

func TestCosmosListExhausted(t *testing.T) {
	e1 := newLCD(t)
	e1.handle(v1beta1List, http.StatusOK, `{"pagination":{}}`)
	e1.hang(v1List)

	props, err := newTestProvider(t, cosmosDescriptor(e1.URL), nil).ListProposals(context.Background())
	require.Nil(t, props)
	require.Equal(t, endpoint.AllSourcesExhausted, endpoint.KindOf(err))
}

func TestCosmosListSkipsUnparseableEntries(t *testing.T) {
	e1 := newLCD(t)
	e1.handle(v1beta1List, http.StatusOK, `{"proposals":[
		{"proposal_id":"1","status":"PROPOSAL_STATUS_VOTING_PERIOD","content":{"title":"no end"}},
		{"proposal_id":"2","status":"PROPOSAL_STATUS_VOTING_PERIOD","content":{"title":"ok"},"voting_end_time":"2025-01-01T00:00:00Z"}
	]}`)
	props, err := newTestProvider(t, cosmosDescriptor(e1.URL), nil).ListProposals(context.Background())
	require.NoError(t, err)
	require.Len(t, props, 1)
	require.Equal(t, uint64(2), props[0].ID)
}

func voteURI(id int) string {
	return fmt.Sprintf("/cosmos/gov/v1beta1/proposals/%d/votes/%s", id, voter)
}

func TestCosmosHasVoted(t *testing.T) {
	e1, e2 := newLCD(t), newLCD(t)
	// e1 is down for every vote query
	e1.handle(voteURI(7), http.StatusBadGateway, `<html>bad gateway</html>`)
	e1.handle(voteURI(8), http.StatusBadGateway, `<html>bad gateway</html>`)
	e1.handle(voteURI(9), http.StatusBadGateway, `<html>bad gateway</html>`)
	e2.handle(voteURI(7), http.StatusBadRequest, `{"code":3,"message":"voter: `+voter+` not found for proposal: 7","details":[]}`)
	e2.handle(voteURI(8), http.StatusOK, `{"vote":{"proposal_id":"8","voter":"`+voter+`","options":[{"option":"VOTE_OPTION_YES","weight":"1"}]}}`)
	e2.handle(voteURI(9), http.StatusOK, `{"code":5,"message":"not found"}`)

	p := newTestProvider(t, cosmosDescriptor(e1.URL, e2.URL), nil)
	ctx := context.Background()

	voted, err := p.HasVoted(ctx, 7)
	require.NoError(t, err)
	require.False(t, voted)

	voted, err = p.HasVoted(ctx, 8)
	require.NoError(t, err)
	require.True(t, voted)

	voted, err = p.HasVoted(ctx, 9)
	require.NoError(t, err)
	require.False(t, voted)
}

func TestCosmosHasVotedStopsAtFirstConclusive(t *testing.T) {
	e1, e2 := newLCD(t), newLCD(t)
	e1.handle(voteURI(7), http.StatusNotFound, `{"code":5,"message":"not found"}`)
	p := newTestProvider(t, cosmosDescriptor(e1.URL, e2.URL), nil)
	voted, err := p.HasVoted(context.Background(), 7)
	require.NoError(t, err)
	require.False(t, voted)
	require.Empty(t, e2.Hits())
}

func TestCosmosHasVotedAllTimeOut(t *testing.T) {
	e1, e2 := newLCD(t), newLCD(t)
	e1.hang(voteURI(7))
	e2.hang(voteURI(7))
	_, err := newTestProvider(t, cosmosDescriptor(e1.URL, e2.URL), nil).HasVoted(context.Background(), 7)
	require.Equal(t, endpoint.AllSourcesExhausted, endpoint.KindOf(err))
	require.Len(t, e1.Hits(), 1)
	require.Len(t, e2.Hits(), 1)
}

const (
	namadaValidator = "tnam1qx6k7xv66y58jw2jngtt98x0r9k3wtljxqd7qe2l"
	namadaVotesURI  = "/api/v1/gov/voter/" + namadaValidator + "/votes"
)

func namadaDescriptor(indexers ...string) config.NetworkDescriptor {
	return config.NetworkDescriptor{Name: "namada", Family: config.FamilyNamada, Endpoints: indexers, Validator: namadaValidator}
}

func TestNamadaListResolvesVotes(t *testing.T) {
	i1, i2 := newLCD(t), newLCD(t)
	i1.handle(namadaListPath, http.StatusServiceUnavailable, `{}`)
	i2.handle(namadaListPath, http.StatusOK, `{"results":[
		{"id":"5","content":"{\"title\":\"Steward election\"}","type":"default","endTime":"1735689600","status":"votingPeriod"},
		{"id":"6","type":"pgfFunding","endTime":1735689700},
		{"id":"7","endTime":"nope"}
	],"pagination":{"page":1}}`)
	i1.handle(namadaVotesURI, http.StatusInternalServerError, `{}`)
	i2.handle(namadaVotesURI, http.StatusOK, `[{"proposalId":"5","vote":"yay"},{"proposalId":3.0,"vote":"nay"}]`)

	props, err := newTestProvider(t, namadaDescriptor(i1.URL, i2.URL), nil).ListProposals(context.Background())
	require.NoError(t, err)
	require.Equal(t, []proposal.Proposal{
		{Network: "namada", ID: 5, Title: "Steward election", VotingEndTime: 1735689600, Voted: true, VoteResolved: true},
		{Network: "namada", ID: 6, Title: "pgfFunding", VotingEndTime: 1735689700, Voted: false, VoteResolved: true},
	}, props)
}

func TestNamadaListLeavesUnresolvedVotes(t *testing.T) {
	i1 := newLCD(t)
	i1.handle(namadaListPath, http.StatusOK, `{"results":[{"id":"5","type":"default","endTime":1735689600}]}`)
	i1.hang(namadaVotesURI)

	props, err := newTestProvider(t, namadaDescriptor(i1.URL), nil).ListProposals(context.Background())
	require.NoError(t, err)
	require.Len(t, props, 1)
	require.False(t, props[0].VoteResolved)
	require.False(t, props[0].Voted)
}

func TestNamadaHasVotedIDEncodings(t *testing.T) {
	i1 := newLCD(t)
	i1.handle(namadaVotesURI, http.StatusOK, `[{"proposalId":"5"},{"proposalId":6.0},{"proposalId":7},{"proposalId":"x"},{"other":1}]`)
	p := newTestProvider(t, namadaDescriptor(i1.URL), nil)
	for id, want := range map[uint64]bool{5: true, 6: true, 7: true, 8: false} {
		voted, err := p.HasVoted(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, want, voted, "proposal %d", id)
	}
}

func TestNamadaHasVotedConclusiveMiss(t *testing.T) {
	i1, i2 := newLCD(t), newLCD(t)
	i1.handle(namadaVotesURI, http.StatusOK, `[]`)
	i2.handle(namadaVotesURI, http.StatusOK, `[{"proposalId":"5"}]`)
	voted, err := newTestProvider(t, namadaDescriptor(i1.URL, i2.URL), nil).HasVoted(context.Background(), 5)
	require.NoError(t, err)
	require.False(t, voted)
	require.Empty(t, i2.Hits(), "a 200 without a match is conclusive")
}

func TestNamadaHasVotedMalformed(t *testing.T) {
	i1 := newLCD(t)
	i1.handle(namadaVotesURI, http.StatusOK, `{"not":"a list"}`)
	_, err := newTestProvider(t, namadaDescriptor(i1.URL), nil).HasVoted(context.Background(), 5)
	require.Equal(t, endpoint.AllSourcesExhausted, endpoint.KindOf(err))
}
