package history

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"versync/internal/transfer"
	"versync/internal/version"
)

// Uploader writes the local machine's history files.
type Uploader struct {
	backend transfer.Backend
	machine string
	log     *logrus.Entry
}

// NewUploader creates an uploader for machine.
func NewUploader(backend transfer.Backend, machine string, log *logrus.Entry) *Uploader {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Uploader{
		backend: backend,
		machine: machine,
		log:     log.WithFields(logrus.Fields{"component": "uploader", "machine": machine}),
	}
}

// Upload writes headers following base as the machine's next file and
// returns its key. Nothing is written when headers is empty.
func (u *Uploader) Upload(ctx context.Context, base *version.Header, headers version.Branch) (string, error) {
	if len(headers) == 0 {
		return "", nil
	}

	seq, err := u.nextSeq(ctx)
	if err != nil {
		return "", err
	}

	key := Name(u.machine, seq)
	data := Encode(File{Machine: u.machine, Base: base, Headers: headers})
	if err := u.backend.Write(ctx, key, data); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	u.log.WithFields(logrus.Fields{
		"key":     key,
		"headers": len(headers),
		"bytes":   len(data),
	}).Info("Uploaded history")
	return key, nil
}

func (u *Uploader) nextSeq(ctx context.Context) (uint64, error) {
	keys, err := u.backend.List(ctx, MachinePrefix(u.machine))
	if err != nil {
		return 0, fmt.Errorf("list history: %w", err)
	}
	var last uint64
	for _, key := range keys {
		machine, seq, err := ParseName(key)
		if err != nil || machine != u.machine {
			continue
		}
		if seq > last {
			last = seq
		}
	}
	return last + 1, nil
}
