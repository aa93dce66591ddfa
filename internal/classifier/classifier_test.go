package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashtags(t *testing.T) {
	assert.Equal(t, []string{"go", "ideas"}, Hashtags("learn #Go today #ideas, and #go again"))
	assert.Equal(t, []string{}, Hashtags("no tags # here"))
}

func TestStripHashtags(t *testing.T) {
	assert.Equal(t, "buy milk # now", StripHashtags("buy  milk #shopping # now #errand"))
}

func TestSimpleClassifier(t *testing.T) {
	c := NewSimpleClassifier(0)
	assert.Equal(t,
		[]string{"urgent", "shopping", "work"},
		c.ClassifyContent("#urgent buy printer paper before the meeting"))

	// explicit tags are not repeated by the keyword pass
	assert.Equal(t, []string{"travel"}, c.ClassifyContent("#travel hotel"))

	assert.Equal(t, []string{}, c.ClassifyContent("nothing to see"))
}

func TestSimpleClassifier_MaxTags(t *testing.T) {
	c := NewSimpleClassifier(2)
	tags := c.ClassifyContent("#a #b #c meeting")
	assert.Equal(t, []string{"a", "b"}, tags)
}
