package tsinspect

import "github.com/asticode/go-astikit"

// Right now we use a global logger because it feels weird to inject a logger
// into pure parsing functions. No code in the package writes to it: dropped
// sections and unidentified codecs are not logged, and none of these are
// fatal.
var logger = astikit.AdaptStdLogger(nil)

func SetLogger(l astikit.StdLogger) { logger = astikit.AdaptStdLogger(l) }
