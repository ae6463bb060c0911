// Package extractors registers every built-in extractor with the default registry when imported.
package extractors

import (
	_ "github.com/alanbriolat/gallery-archiver/extractors/directlink"
	_ "github.com/alanbriolat/gallery-archiver/extractors/feed"
	_ "github.com/alanbriolat/gallery-archiver/extractors/generic"
	_ "github.com/alanbriolat/gallery-archiver/extractors/telegraph"
	_ "github.com/alanbriolat/gallery-archiver/extractors/youtube"
)
