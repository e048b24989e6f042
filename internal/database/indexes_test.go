package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexSpecsUniqueConstraints(t *testing.T) {
	unique := map[string]bool{}
	for collection, models := range indexSpecs() {
		for _, m := range models {
			require.NotNil(t, m.Options)
			require.NotNil(t, m.Options.Name, "index on %s needs a name", collection)
			if m.Options.Unique != nil && *m.Options.Unique {
				unique[collection+"."+*m.Options.Name] = true
			}
		}
	}

	assert.True(t, unique["cart_items.user_product_unique"])
	assert.True(t, unique["campaigns.inviteCode_unique"])
	assert.True(t, unique["user_profiles.userId_unique"])
	assert.True(t, unique["users.email_unique"])
	assert.Len(t, unique, 4)
}
