package domain

// StrategyName identifies a renderer in the fallback chain.
type StrategyName string

const (
	StrategyOffice  StrategyName = "office"
	StrategyBrowser StrategyName = "browser"
	StrategyMinimal StrategyName = "minimal"
	// StrategyCache marks a result served from the result cache.
	StrategyCache StrategyName = "cache"
)

// DefaultStrategy is the fixed priority order of renderers. Every document walks the
// chain from the first entry, whatever its type.
var DefaultStrategy = []StrategyName{StrategyOffice, StrategyBrowser, StrategyMinimal}

// ConversionJob is one document moving from upload to output. It is owned by the
// request that created it.
type ConversionJob struct {
	ID           string
	InputPath    string
	OriginalName string
	OutputPath   string
	// Strategy is set once a renderer succeeded.
	Strategy StrategyName
}

// Success describes a verified output file.
type Success struct {
	OutputPath string
	SizeBytes  int64
	Strategy   StrategyName
}

// Failure carries the reason of the last failed attempt.
type Failure struct {
	Reason string
}

// ConversionResult is either a Success or a Failure, never both.
// Build it with Succeeded or Failed.
type ConversionResult struct {
	success *Success
	failure *Failure
}

func Succeeded(outputPath string, size int64, strategy StrategyName) ConversionResult {
	return ConversionResult{success: &Success{OutputPath: outputPath, SizeBytes: size, Strategy: strategy}}
}

func Failed(reason string) ConversionResult {
	return ConversionResult{failure: &Failure{Reason: reason}}
}

// OK reports whether the result is a Success.
func (r ConversionResult) OK() bool { return r.success != nil }

// Success returns the success payload; ok is false for a failed result.
func (r ConversionResult) Success() (Success, bool) {
	if r.success == nil {
		return Success{}, false
	}
	return *r.success, true
}

// Failure returns the failure payload; ok is false for a successful result.
// The zero ConversionResult reads as a failure with an empty reason.
func (r ConversionResult) Failure() (Failure, bool) {
	if r.success != nil {
		return Failure{}, false
	}
	if r.failure == nil {
		return Failure{}, true
	}
	return *r.failure, true
}
