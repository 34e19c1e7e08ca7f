package session

import (
	"time"

	"github.com/Sumatoshi-tech/multisum/pkg/digest"
)

// Observer receives the results of the current generation. Callbacks run on
// the supervisor's goroutine, one at a time; they may call Submit.
type Observer interface {
	// Progress reports the share of the input every worker has hashed, in
	// [0, 100]. Values never decrease within a generation and reach 100 only
	// once every digest is final.
	Progress(percent float64)

	// DigestReady delivers one algorithm's lowercase hex digest. Digests are
	// held until every worker of the generation has finished, then delivered
	// once each, in configured order, before the final Progress(100). A
	// generation superseded before that point delivers none.
	DigestReady(alg digest.Algorithm, hex string)

	// Failed reports that the generation stopped without digests.
	Failed(kind ErrorKind, err error)
}

// CompletionObserver is implemented by observers that also want the full
// Result once every digest of a generation has been delivered.
type CompletionObserver interface {
	Completed(res Result)
}

// Result is what one completed generation produced.
type Result struct {
	Generation uint64
	Label      string
	Source     string
	TotalSize  int64
	Chunks     int
	Algorithms []digest.Algorithm
	Digests    map[digest.Algorithm]string
	Elapsed    time.Duration
}

// Ordered returns the digests in configured algorithm order.
func (r Result) Ordered() []AlgorithmDigest {
	out := make([]AlgorithmDigest, 0, len(r.Algorithms))
	for _, alg := range r.Algorithms {
		if hex, ok := r.Digests[alg]; ok {
			out = append(out, AlgorithmDigest{Algorithm: alg, Hex: hex})
		}
	}

	return out
}

// AlgorithmDigest pairs an algorithm with its digest.
type AlgorithmDigest struct {
	Algorithm digest.Algorithm
	Hex       string
}

// ObserverFuncs adapts plain functions to Observer and CompletionObserver.
// Nil fields are skipped.
type ObserverFuncs struct {
	OnProgress  func(percent float64)
	OnDigest    func(alg digest.Algorithm, hex string)
	OnFailed    func(kind ErrorKind, err error)
	OnCompleted func(res Result)
}

// Progress implements Observer.
func (f ObserverFuncs) Progress(percent float64) {
	if f.OnProgress != nil {
		f.OnProgress(percent)
	}
}

// DigestReady implements Observer.
func (f ObserverFuncs) DigestReady(alg digest.Algorithm, hex string) {
	if f.OnDigest != nil {
		f.OnDigest(alg, hex)
	}
}

// Failed implements Observer.
func (f ObserverFuncs) Failed(kind ErrorKind, err error) {
	if f.OnFailed != nil {
		f.OnFailed(kind, err)
	}
}

// Completed implements CompletionObserver.
func (f ObserverFuncs) Completed(res Result) {
	if f.OnCompleted != nil {
		f.OnCompleted(res)
	}
}
