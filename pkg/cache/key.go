package cache

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/cloudslice/reductionist/pkg/request"
)

// DefaultKeyFormat matches the config package's default and is used when a
// caller builds keys without going through Config.
const DefaultKeyFormat = "%source/%bucket/%object#%offset,%size,%dtype,%byte_order,%compression"

// BuildKey substitutes the recognized tokens in format and hashes the
// result to a fixed-length digest. identity is the caller's auth identity
// (typically the access key); it is only consulted when format references
// %auth, so a no-auth shared cache never forks its key space on credentials
// that happen to be present on the request.
func BuildKey(format string, d *request.Descriptor, identity string) string {
	r := strings.NewReplacer(
		"%source", d.Locator.Source,
		"%bucket", d.Locator.Bucket,
		"%object", d.Locator.Object,
		"%url", d.Locator.URL,
		"%offset", strconv.FormatInt(d.Offset, 10),
		"%size", strconv.FormatInt(d.Size, 10),
		"%dtype", string(d.DType),
		"%byte_order", string(d.ByteOrder),
		"%compression", string(d.Compression),
		"%auth", identity,
	)
	literal := r.Replace(format)
	return digest(literal)
}

// UsesIdentity reports whether a key format forks the key space per caller
// identity, which is how the cache's per-identity authorization mode is
// distinguished from its shared modes.
func UsesIdentity(format string) bool {
	return strings.Contains(format, "%auth")
}

func digest(literal string) string {
	sum := md5.Sum([]byte(literal))
	return hex.EncodeToString(sum[:])
}
