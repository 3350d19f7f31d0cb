package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Tabling Logs",
		Headers: []string{"Organization", "Event", "Spot", "Checked In", "Checked Out", "No Show"},
		Rows: []map[string]string{
			{"Organization": "Chess Club", "Event": "E100", "Spot": "MU-1", "Checked In": "2024-01-10 09:00"},
			{"Organization": "Robotics, Inc", "Event": "E101", "No Show": "yes"},
		},
	}
}

func TestCSVRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Organization,Event,Spot,Checked In,Checked Out,No Show", lines[0])
	assert.Equal(t, "Chess Club,E100,MU-1,2024-01-10 09:00,,", lines[1])
	assert.Equal(t, `"Robotics, Inc",E101,,,,yes`, lines[2])
}

func TestRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFRender(t *testing.T) {
	data := sampleDataset()
	for i := 0; i < 80; i++ {
		data.Rows = append(data.Rows, map[string]string{"Organization": strings.Repeat("x", 60)})
	}
	out, err := NewPDFExporter().Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
