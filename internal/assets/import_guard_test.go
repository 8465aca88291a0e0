package assets

import (
	"testing"

	"arbitros/testutil"
)

func TestAssetsUseBlobFacade(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.CloudSDKImport, "assets talks to storage through blob.Store")
}
