package server

import (
	"github.com/imdario/mergo"

	"github.com/corvidwatch/logproto/encoding"
)

// MultilinePolicy selects how a TextServer groups physical lines into
// one logical multi-line record.
type MultilinePolicy int

const (
	// MultilineNone delivers each physical line as its own record.
	MultilineNone MultilinePolicy = iota
	// MultilineIndented joins a line onto the previous record while it
	// begins with leading whitespace ("line continuation").
	MultilineIndented
	// MultilinePrefixGarbage starts a new record at each line that
	// begins with the configured prefix marker and joins every other
	// line onto the current record. Lines before the first marker are
	// not discarded; they form a record of their own.
	MultilinePrefixGarbage
	// MultilinePrefixSuffix starts a new record on a configured prefix
	// marker and/or ends one on a configured suffix marker.
	MultilinePrefixSuffix
	// MultilineRegexp starts a record when the configured regular
	// expression (MultilinePrefix) matches the physical line; it never
	// ends a record on a match.
	MultilineRegexp
)

// Options configures a BufferedServer and its concrete subtypes. The
// zero value is not meaningful; build one with mergo over
// DefaultOptions so unset fields fall back to sane defaults.
type Options struct {
	// InitialBufferSize is the buffer's starting capacity in bytes.
	InitialBufferSize int
	// MaxBufferSize caps how large the buffer is allowed to grow while
	// searching for a complete record; exceeding it is an overlong-line
	// condition.
	MaxBufferSize int
	// Encoding names the IANA/MIME charset of the raw stream, or the
	// empty string for UTF-8/passthrough.
	Encoding string
	// Multiline selects the TextServer line-joining policy.
	Multiline MultilinePolicy
	// MultilinePrefix and MultilineSuffix are the literal or regexp
	// markers used by MultilinePrefixGarbage/MultilinePrefixSuffix/
	// MultilineRegexp.
	MultilinePrefix string
	MultilineSuffix string
	// TrailingPartialIsRecord, when true, delivers a final record left
	// in the buffer at EOF even though it lacks a terminator, instead
	// of reporting KindPartial.
	TrailingPartialIsRecord bool
	// RecordSize configures RecordServer's fixed binary record length
	// in bytes; zero means "not a record server".
	RecordSize int
	// PadSize, if non-zero, rounds RecordExtractor's frame length up to
	// the next multiple of PadSize; the bytes past RecordSize in each
	// frame are consumed and dropped.
	PadSize int
	// RecordPadded selects the padded record flavour: the fixed-size
	// chunk is truncated at its first '\n' or NUL byte rather than
	// delivered verbatim.
	RecordPadded bool
	// MaxMessageSize bounds a single RFC-6587 octet-counted frame, and
	// a single text line when TrimLargeMessages is set.
	MaxMessageSize int
	// TrimLargeMessages, when true, truncates a record exceeding
	// MaxMessageSize to exactly MaxMessageSize bytes and delivers it.
	// When false, an over-long text line is delivered in full, while an
	// octet-counted frame declaring more than MaxMessageSize bytes is
	// rejected as KindInvalidFraming.
	TrimLargeMessages bool
	// RequireProxyHeader records whether a PROXY protocol header is
	// mandatory. BufferedServer does not read this field;
	// NegotiateProxyProtocol takes the requirement as its own argument.
	RequireProxyHeader bool
}

// DefaultOptions returns the baseline Options every constructor merges
// caller-supplied overrides onto.
func DefaultOptions() Options {
	return Options{
		InitialBufferSize: 4096,
		MaxBufferSize:     64 * 1024,
		MaxMessageSize:    64 * 1024,
		TrailingPartialIsRecord: true,
	}
}

// Option mutates an Options in place; constructors apply a list of
// Options via Apply before merging with DefaultOptions.
type Option func(*Options)

// WithInitialBufferSize overrides the starting buffer capacity.
func WithInitialBufferSize(n int) Option {
	return func(o *Options) { o.InitialBufferSize = n }
}

// WithMaxBufferSize overrides the maximum buffer growth ceiling.
func WithMaxBufferSize(n int) Option {
	return func(o *Options) { o.MaxBufferSize = n }
}

// WithEncoding sets the declared charset of the raw stream.
func WithEncoding(name string) Option {
	return func(o *Options) { o.Encoding = name }
}

// WithMultiline selects a TextServer's line-joining policy and its
// prefix/suffix markers (interpretation depends on policy).
func WithMultiline(policy MultilinePolicy, prefix, suffix string) Option {
	return func(o *Options) {
		o.Multiline = policy
		o.MultilinePrefix = prefix
		o.MultilineSuffix = suffix
	}
}

// WithTrailingPartialAsRecord controls whether a final, unterminated
// buffered record is delivered at EOF.
func WithTrailingPartialAsRecord(yes bool) Option {
	return func(o *Options) { o.TrailingPartialIsRecord = yes }
}

// WithRecordSize configures a fixed binary record length, optionally
// padded to padSize. When padded is true, each delivered record is
// truncated at its first '\n' or NUL byte rather than delivered
// verbatim.
func WithRecordSize(size, padSize int, padded bool) Option {
	return func(o *Options) {
		o.RecordSize = size
		o.PadSize = padSize
		o.RecordPadded = padded
	}
}

// WithMaxMessageSize bounds a single RFC-6587 octet-counted frame, and
// a single text line when trim is enabled.
func WithMaxMessageSize(n int) Option {
	return func(o *Options) { o.MaxMessageSize = n }
}

// WithTrimLargeMessages toggles whether an over-large record is
// truncated to MaxMessageSize bytes (true) or not (false). Without
// trimming, an over-long text line is delivered in full and an
// over-long octet-counted frame is rejected as KindInvalidFraming.
func WithTrimLargeMessages(trim bool) Option {
	return func(o *Options) { o.TrimLargeMessages = trim }
}

// WithRequireProxyHeader toggles mandatory PROXY protocol pre-handshake.
func WithRequireProxyHeader(require bool) Option {
	return func(o *Options) { o.RequireProxyHeader = require }
}

// BuildOptions applies opts over DefaultOptions using mergo, so a
// caller only needs to specify the fields they care about.
func BuildOptions(opts ...Option) (Options, error) {
	result := DefaultOptions()
	// The override starts from the defaults and is merged with empty
	// values overwriting, so an option may set a field to its zero value
	// (e.g. WithTrailingPartialAsRecord(false)).
	override := DefaultOptions()
	for _, opt := range opts {
		opt(&override)
	}
	if err := mergo.Merge(&result, override, mergo.WithOverwriteWithEmptyValue); err != nil {
		return Options{}, err
	}
	return result, nil
}

// newConverter builds the Options' declared encoding.Converter.
func (o Options) newConverter() (*encoding.Converter, error) {
	return encoding.NewConverter(o.Encoding)
}
