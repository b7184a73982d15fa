package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode holds CBOR encoding options with canonical mode for
// deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalImage serializes an Image to CBOR bytes.
func MarshalImage(img *Image) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// UnmarshalImage deserializes an Image from CBOR bytes.
func UnmarshalImage(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("wire: unmarshal image: %w", err)
	}
	return &img, nil
}
