package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountComments(t *testing.T) {
	forest := ReplyForest{
		Comment("t1_a", "alice", "hi",
			Comment("t1_b", "bob", "hello",
				More("t1_m1", "t1_x", "t1_y"),
			),
			nil,
		),
		More("t1_m2"),
		Comment("t1_c", "carol", "bye"),
	}

	assert.Equal(t, 3, forest.CountComments())
	assert.Equal(t, 0, ReplyForest(nil).CountComments())
}

func TestReplyNodeKinds(t *testing.T) {
	more := More("t1_m", "t1_x", "t1_y")
	assert.True(t, more.IsMore())
	assert.Equal(t, 2, more.MoreCount)
	assert.Equal(t, "more", more.Kind.String())

	comment := Comment("t1_a", "alice", "hi")
	assert.False(t, comment.IsMore())
	assert.Equal(t, "comment", comment.Kind.String())

	var missing *ReplyNode
	assert.False(t, missing.IsMore())
	assert.Equal(t, "unknown", NodeKind(7).String())
}
