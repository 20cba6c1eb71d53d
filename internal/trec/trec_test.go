package trec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talfrim/searchengine/internal/search"
)

const topicsFixture = `
<top>
<num> Number: 301
<title> International Organized Crime

<desc> Description:
Identify organizations that participate in international criminal
activity.
</top>

<top>
<num> Number: 302
<title> Poliomyelitis and Post-Polio
</top>
`

func TestParseTopics(t *testing.T) {
	topics, err := ParseTopics(strings.NewReader(topicsFixture))
	require.NoError(t, err)
	require.Len(t, topics, 2)

	assert.Equal(t, "301", topics[0].ID)
	assert.Equal(t, "International Organized Crime", topics[0].Text)
	assert.Equal(t, "302", topics[1].ID)
	assert.Equal(t, "Poliomyelitis and Post-Polio", topics[1].Text)
}

func TestParseTopicsWrappedTitle(t *testing.T) {
	fixture := `
<top>
<num> Number: 303
<title> Hubble Telescope
Achievements
<desc> Description:
ignored
</top>
`
	topics, err := ParseTopics(strings.NewReader(fixture))
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "Hubble Telescope Achievements", topics[0].Text)
}

func TestParseTopicsEmptyInput(t *testing.T) {
	_, err := ParseTopics(strings.NewReader(""))
	assert.Error(t, err)
}

func TestWriteResultsFormat(t *testing.T) {
	results := []search.QueryResults{
		{
			ID: "301",
			Results: []search.Result{
				{DocNo: "FBIS3-10001", Score: 12.5},
				{DocNo: "FBIS3-10002", Score: 9.1},
			},
		},
		{
			// A trailing space on the query id must not reach the output.
			ID: "302 ",
			Results: []search.Result{
				{DocNo: "FBIS3-20001", Score: 3.3},
			},
		},
		{
			ID:      "303",
			Results: nil,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, results))

	want := "301 0 FBIS3-10001 1 1.1 mt\n" +
		"301 0 FBIS3-10002 1 1.1 mt\n" +
		"302 0 FBIS3-20001 1 1.1 mt\n"
	assert.Equal(t, want, buf.String())
}
