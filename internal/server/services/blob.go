package services

import (
	"io"
	"sync"
)

// Blob is ciphertext being served to a client. Close must be called once
// the body has been streamed; it releases the object and runs any cleanup
// the access triggered.
type Blob struct {
	Body         io.ReadCloser
	Size         int64
	ContentNonce []byte
	Name         string
	MimeType     string

	once  sync.Once
	after func()
}

func (b *Blob) Read(p []byte) (int, error) {
	return b.Body.Read(p)
}

func (b *Blob) Close() error {
	err := b.Body.Close()
	b.once.Do(func() {
		if b.after != nil {
			b.after()
		}
	})
	return err
}
