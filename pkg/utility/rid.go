package utility

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	recordMu      sync.Mutex
	recordEntropy io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	recordEntropy = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0) // #nosec G404
}

// CreateRecordID returns a time-sortable ULID for persisted rows.
func CreateRecordID() string {
	recordMu.Lock()
	defer recordMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), recordEntropy)
	if err != nil {
		panic(err)
	}
	return id.String()
}
