package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplySplit(t *testing.T) {
	tests := []struct {
		name string
		data string
		spec string
		want string
	}{
		{"space delimiter", "one two three", "space,1", "two"},
		{"whitespace collapses runs", "one   two\tthree", "whitespace,2", "three"},
		{"comma delimiter", "a,b,c", "comma,0", "a"},
		{"colon delimiter", "root:x:0:0", "colon,2", "0"},
		{"pipe delimiter", "x|y|z", "pipe,1", "y"},
		{"semi alias", "p;q", "semi,1", "q"},
		{"newline delimiter", "l1\nl2\nl3", "newline,1", "l2"},
		{"tab delimiter", "a\tb", "tab,1", "b"},
		{"out of bounds returns original", "a b", "space,9", "a b"},
		{"negative index returns original", "a b", "space,-1", "a b"},
		{"unknown delimiter returns original", "a b", "dash,0", "a b"},
		{"non-integer index returns original", "a b", "space,x", "a b"},
		{"missing index returns original", "a b", "space", "a b"},
		{"empty spec returns original", "a b", "", "a b"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, applySplit(tc.data, tc.spec))
		})
	}
}
