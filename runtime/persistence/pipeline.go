package persistence

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
)

// Pipeline runs one save or load across a set of participants.
type Pipeline struct {
	participants []Participant
}

// NewPipeline creates a pipeline
func NewPipeline(participants ...Participant) *Pipeline {
	return &Pipeline{participants: participants}
}

// Participants returns pipeline participants
func (p *Pipeline) Participants() []Participant { return p.participants }

// Save collects values from every participant, encodes them and hands the
// record to store. Each participant is notified exactly once: completed when
// store succeeds, aborted on every other exit including panics.
func (p *Pipeline) Save(ctx context.Context, store func(ctx context.Context, record *Record) error) (err error) {
	collected := 0
	done := false
	defer func() {
		if done {
			return
		}
		r := recover()
		if abortErr := p.abort(collected); abortErr != nil {
			err = multierr.Append(err, abortErr)
		}
		if r != nil {
			panic(r)
		}
	}()

	readWrite, writeOnly := Values{}, Values{}
	for _, participant := range p.participants {
		collected++
		rw, wo := participant.CollectValues()
		if err = merge(readWrite, rw); err != nil {
			return err
		}
		if err = merge(writeOnly, wo); err != nil {
			return err
		}
	}
	for name := range writeOnly {
		if _, ok := readWrite[name]; ok {
			return fmt.Errorf("duplicate persistence name: %v", name)
		}
	}
	record := &Record{}
	if record.ReadWrite, err = encode(readWrite); err != nil {
		return err
	}
	if record.WriteOnly, err = encode(writeOnly); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = store(ctx, record); err != nil {
		return err
	}
	done = true
	for _, participant := range p.participants {
		if notifier, ok := participant.(Notifier); ok {
			notifier.OnSaveCompleted()
		}
	}
	return nil
}

func (p *Pipeline) abort(collected int) (err error) {
	for i := 0; i < collected && i < len(p.participants); i++ {
		notifier, ok := p.participants[i].(Notifier)
		if !ok {
			continue
		}
		err = multierr.Append(err, safeAbort(notifier))
	}
	return err
}

func safeAbort(notifier Notifier) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("abort notification panic: %v", r)
		}
	}()
	notifier.OnSaveAborted()
	return nil
}

// Load publishes the read-write values of record to every participant.
// Write-only values are never published.
func (p *Pipeline) Load(record *Record) error {
	values := Values{}
	if record != nil {
		for key, raw := range record.ReadWrite {
			name, err := ParseName(key)
			if err != nil {
				return err
			}
			values[name] = raw
		}
	}
	var err error
	for _, participant := range p.participants {
		err = multierr.Append(err, participant.PublishValues(values))
	}
	return err
}

func merge(dest, src Values) error {
	for name, value := range src {
		if _, ok := dest[name]; ok {
			return fmt.Errorf("duplicate persistence name: %v", name)
		}
		dest[name] = value
	}
	return nil
}
