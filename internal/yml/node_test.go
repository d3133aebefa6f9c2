package yml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNode(t *testing.T) {
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(`
id: order
nodes:
  b: {start: true}
  a: {split: xor}
init:
  - {name: n, value: 1.5}
  - {name: flag, value: true}
`), &doc))
	root := (*Node)(&doc).Root()
	assert.Equal(t, "order", root.Lookup("ID").Text())
	assert.Nil(t, root.Lookup("missing"))
	assert.Equal(t, "", root.Lookup("missing").Text())

	var keys []string
	require.NoError(t, root.Lookup("nodes").Pairs(func(key string, _ *Node) error {
		keys = append(keys, key)
		return nil
	}))
	assert.Equal(t, []string{"b", "a"}, keys, "document order preserved")

	assert.Equal(t, []interface{}{
		map[string]interface{}{"name": "n", "value": 1.5},
		map[string]interface{}{"name": "flag", "value": true},
	}, root.Lookup("init").Interface())
}
