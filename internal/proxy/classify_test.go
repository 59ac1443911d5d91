package proxy

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyHealth(t *testing.T) {
	require.Equal(t, DispositionHealth, Classify(http.MethodGet, "/-/health"))
}

func TestClassifyNonGetPassthrough(t *testing.T) {
	require.Equal(t, DispositionPassthrough, Classify(http.MethodPost, "/express"))
	require.Equal(t, DispositionPassthrough, Classify(http.MethodPut, "/express"))
}

func TestClassifySpecialPathPassthrough(t *testing.T) {
	require.Equal(t, DispositionPassthrough, Classify(http.MethodGet, "/express/-/express-4.18.0.tgz"))
	require.Equal(t, DispositionPassthrough, Classify(http.MethodGet, "/-/v1/search"))
}

func TestClassifyMetadataGet(t *testing.T) {
	require.Equal(t, DispositionMetadata, Classify(http.MethodGet, "/express"))
	require.Equal(t, DispositionMetadata, Classify(http.MethodGet, "/@types/node"))
}
