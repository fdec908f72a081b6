package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk_EmptyTextFallsBackEmpty(t *testing.T) {
	chunks := Chunk("", 450)
	assert.Empty(t, chunks)
}

func TestChunk_NoSectionHeadersUsesRoot(t *testing.T) {
	chunks := Chunk("just a plain paragraph with no headers at all", 450)
	if assert.Len(t, chunks, 1) {
		assert.Equal(t, "Root", chunks[0].SectionTitle)
		assert.Equal(t, "root", chunks[0].SectionID)
	}
}

func TestChunk_RecognizesAllCapsHeader(t *testing.T) {
	text := "EXPERIENCE\n\nWorked on distributed systems at a large scale.\n\nEDUCATION\n\nStudied computer science."
	chunks := Chunk(text, 450)
	require := assert.New(t)
	require.Len(chunks, 2)
	require.Equal("EXPERIENCE", chunks[0].SectionTitle)
	require.Equal("EDUCATION", chunks[1].SectionTitle)
	require.Equal("experience", chunks[0].SectionID)
}

func TestChunk_RecognizesTitleCaseHeader(t *testing.T) {
	text := "Work Experience\n\nBuilt several internal tools for the data platform team."
	chunks := Chunk(text, 450)
	if assert.Len(t, chunks, 1) {
		assert.Equal(t, "Work Experience", chunks[0].SectionTitle)
	}
}

func TestChunk_SplitsWhenExceedingMaxTokens(t *testing.T) {
	para := strings.Repeat("word ", 100) // ~500 chars -> ~126 tokens
	text := "Summary\n\n" + para + "\n\n" + para + "\n\n" + para
	chunks := Chunk(text, 150)
	assert.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.LocalIndex)
		assert.Equal(t, i, c.GlobalIndex)
	}
}

func TestChunk_GlobalIndexIncreasesAcrossSections(t *testing.T) {
	text := "SECTION ONE\n\nFirst paragraph here.\n\nSECTION TWO\n\nSecond paragraph here."
	chunks := Chunk(text, 450)
	require := assert.New(t)
	require.Len(chunks, 2)
	require.Equal(0, chunks[0].GlobalIndex)
	require.Equal(1, chunks[1].GlobalIndex)
	require.Equal(0, chunks[0].LocalIndex)
	require.Equal(0, chunks[1].LocalIndex)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "work-experience", slug("Work Experience"))
	assert.Equal(t, "r-d", slug("R&D"))
	assert.Equal(t, "root", slug("Root"))
}
