package memory

import (
	"github.com/Borislavv/go-ash-imgcache/internal/model"
	"sync/atomic"
)

// Entry is a resident image. touchedAt is a logical tick, not wall time,
// so that recency ordering never ties.
type Entry struct {
	key       model.Key
	img       model.Image
	touchedAt atomic.Uint64
}

func newEntry(key model.Key, img model.Image) *Entry {
	return &Entry{key: key, img: img}
}

func (e *Entry) Key() model.Key     { return e.key }
func (e *Entry) Image() model.Image { return e.img }
func (e *Entry) Weight() int64      { return e.img.Cost }
func (e *Entry) TouchedAt() uint64  { return e.touchedAt.Load() }
