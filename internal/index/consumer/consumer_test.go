package consumer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talfrim/searchengine/internal/docstore"
	"github.com/talfrim/searchengine/internal/index"
)

func TestHandleMessageFeedsBuilderAndStore(t *testing.T) {
	builder := index.NewBuilder(t.TempDir(), index.Unstemmed)
	docs, err := docstore.OpenWriter(t.TempDir(), 2)
	require.NoError(t, err)
	defer docs.Close()

	event := IngestEvent{
		Tokens: index.DocumentTokens{
			DocNo:  "FBIS3-10001",
			Length: 120,
			Occurrences: []index.TermOccurrence{
				{Term: "budget", Count: 2},
			},
		},
		Record: []string{"FBIS3-10001", "19940301"},
	}
	data, err := json.Marshal(event)
	require.NoError(t, err)

	handler := HandleMessage(builder, docs)
	require.NoError(t, handler(context.Background(), []byte("FBIS3-10001"), data))

	assert.Equal(t, 1, builder.DocCount())
	assert.Equal(t, 1, builder.TermCount())
}

func TestHandleMessageSkipsBadPayloads(t *testing.T) {
	builder := index.NewBuilder(t.TempDir(), index.Unstemmed)
	handler := HandleMessage(builder, nil)

	// Malformed events are dropped without failing the consumer.
	assert.NoError(t, handler(context.Background(), nil, []byte("not json")))

	missing, err := json.Marshal(IngestEvent{})
	require.NoError(t, err)
	assert.NoError(t, handler(context.Background(), nil, missing))

	assert.Zero(t, builder.DocCount())
}
