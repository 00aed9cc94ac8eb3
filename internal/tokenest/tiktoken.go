package tokenest

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// encodingCache avoids re-initializing the same BPE encoding across
// TiktokenEstimator instances within one process, the same caching shape as
// kadirpekel-hector/pkg/utils/tokens.go's TokenCounter.
var (
	encodingCache   = make(map[string]*tiktoken.Tiktoken)
	encodingCacheMu sync.RWMutex
)

// TiktokenEstimator backs Estimator with real BPE encodings instead of the
// default ceil(len/4) approximation.
type TiktokenEstimator struct {
	enc   *tiktoken.Tiktoken
	model string
}

// NewTiktokenEstimator returns an estimator for the given model name,
// falling back to cl100k_base when the model isn't recognized by
// tiktoken-go.
func NewTiktokenEstimator(model string) (*TiktokenEstimator, error) {
	encodingCacheMu.RLock()
	cached, ok := encodingCache[model]
	encodingCacheMu.RUnlock()
	if ok {
		return &TiktokenEstimator{enc: cached, model: model}, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("tokenest: failed to load tiktoken encoding: %w", err)
		}
	}

	encodingCacheMu.Lock()
	encodingCache[model] = enc
	encodingCacheMu.Unlock()

	return &TiktokenEstimator{enc: enc, model: model}, nil
}

// Estimate returns the exact BPE token count for s.
func (t *TiktokenEstimator) Estimate(s string) int {
	return len(t.enc.Encode(s, nil, nil))
}

// AsEstimator adapts Estimate to the Estimator function type Annotate
// expects.
func (t *TiktokenEstimator) AsEstimator() Estimator { return t.Estimate }

// Model returns the model name this estimator was constructed for.
func (t *TiktokenEstimator) Model() string { return t.model }
