// internal/i18n/i18n_test.go
package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslations(t *testing.T) {
	require.NoError(t, Initialize("en"))

	assert.Equal(t, "Image not found", T("en", KeyImageNotFound))
	assert.Equal(t, "找不到圖片", T("zh_TW", KeyImageNotFound))
	// unknown languages fall back to the default locale
	assert.Equal(t, "Image not found", T("fr", KeyImageNotFound))
	assert.Equal(t, "Invalid request", T("en", KeyValidationInvalid, "request"))
	assert.Equal(t, "no.such.key", T("en", "no.such.key"))

	assert.True(t, IsSupported("zh_TW"))
	assert.False(t, IsSupported("fr"))
	assert.ElementsMatch(t, []string{"en", "zh_TW"}, GetSupportedLanguages())
}

func TestLocalesShareKeys(t *testing.T) {
	require.NoError(t, Initialize("en"))

	instance.mu.RLock()
	defer instance.mu.RUnlock()

	en := instance.translations["en"]
	zh := instance.translations["zh_TW"]
	for key := range en {
		_, ok := zh[key]
		assert.True(t, ok, "zh_TW missing %s", key)
	}
	assert.Len(t, zh, len(en))
}
