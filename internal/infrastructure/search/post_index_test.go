package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeHits(t *testing.T) {
	body := `{"hits":{"hits":[
		{"_id":"p1","_score":1.5,"_source":{"id":"p1","postedBy":"u1","text":"hello world","createdAt":"2024-06-01T10:00:00Z"}},
		{"_id":"p2","_score":0.7,"_source":{"id":"p2","postedBy":"u2","text":"hello there","img":"https://cdn/x.png","createdAt":"2024-06-01T09:00:00Z"}}
	]}}`

	hits, err := decodeHits(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "p1", hits[0].ID)
	require.Equal(t, "u1", hits[0].PostedBy)
	require.InDelta(t, 1.5, hits[0].Score, 1e-9)
	require.Equal(t, "https://cdn/x.png", hits[1].Img)

	hits, err = decodeHits(strings.NewReader(`{"hits":{"hits":[]}}`))
	require.NoError(t, err)
	require.NotNil(t, hits)
	require.Empty(t, hits)

	_, err = decodeHits(strings.NewReader(`not json`))
	require.Error(t, err)
}
