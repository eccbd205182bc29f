package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/trekka/core"
)

func TestBuildMessages_MergesConsecutiveRoles(t *testing.T) {
	msgs := buildMessages([]core.Message{
		core.SystemMessage("sys"),
		core.UserMessage("a"),
		core.UserMessage("b"),
		core.AssistantMessage("c"),
	})
	require.Len(t, msgs, 2)
	assert.Len(t, msgs[0].Content, 2)
	assert.Len(t, msgs[1].Content, 1)
}

func TestExtractSystem(t *testing.T) {
	blocks := extractSystem([]core.Message{core.SystemMessage("sys"), core.UserMessage("hi")})
	require.Len(t, blocks, 1)
	assert.Equal(t, "sys", blocks[0].Text)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test" })
	assert.Equal(t, "anthropic", m.Info().Provider)
}
