package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "proxylink/internal/core/errors"
	"proxylink/internal/pipeline"
)

var (
	_ pipeline.Decoder            = (*DelimiterDecoder)(nil)
	_ pipeline.ProxyStateNotifier = (*DelimiterDecoder)(nil)
	_ pipeline.Decoder            = RawDecoder{}
)

func strs(frames [][]byte) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = string(f)
	}
	return out
}

func TestDelimiterDecoder_SplitsAcrossReads(t *testing.T) {
	d, err := NewDelimiterDecoder(64, true, true, []byte("$$"))
	require.NoError(t, err)

	frames, err := d.Decode([]byte("abc$$de"))
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, strs(frames))

	frames, err = d.Decode([]byte("f$"))
	require.NoError(t, err)
	assert.Empty(t, frames)

	frames, err = d.Decode([]byte("$g$$"))
	require.NoError(t, err)
	assert.Equal(t, []string{"def", "g"}, strs(frames))
}

func TestDelimiterDecoder_KeepDelimiter(t *testing.T) {
	d, err := NewDelimiterDecoder(64, false, true, []byte("\n"))
	require.NoError(t, err)

	frames, err := d.Decode([]byte("a\nb\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a\n", "b\n"}, strs(frames))
}

func TestDelimiterDecoder_ShortestFrameWins(t *testing.T) {
	d, err := NewLineDecoder(64)
	require.NoError(t, err)

	frames, err := d.Decode([]byte("one\r\ntwo\nthree\r\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, strs(frames))
}

func TestDelimiterDecoder_TooLongFailFast(t *testing.T) {
	d, err := NewDelimiterDecoder(4, true, true, []byte("\n"))
	require.NoError(t, err)

	// 超长且未见分隔符：立即报告并开始丢弃
	frames, err := d.Decode([]byte("0123456"))
	assert.Empty(t, frames)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeFrameTooLong))

	// 丢弃到分隔符为止，后续帧正常
	frames, err = d.Decode([]byte("789\nok\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, strs(frames))
}

func TestDelimiterDecoder_TooLongDeferred(t *testing.T) {
	d, err := NewDelimiterDecoder(4, true, false, []byte("\n"))
	require.NoError(t, err)

	frames, err := d.Decode([]byte("0123456"))
	assert.Empty(t, frames)
	assert.NoError(t, err)

	frames, err = d.Decode([]byte("789\nok\n"))
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeFrameTooLong))
	assert.Equal(t, []string{"ok"}, strs(frames))
}

func TestDelimiterDecoder_TooLongWithDelimiter(t *testing.T) {
	d, err := NewDelimiterDecoder(4, true, true, []byte("\n"))
	require.NoError(t, err)

	frames, err := d.Decode([]byte("toolong\nfine\n"))
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeFrameTooLong))
	assert.Equal(t, []string{"fine"}, strs(frames))
}

func TestDelimiterDecoder_ProxyPassthrough(t *testing.T) {
	d, err := NewLineDecoder(8)
	require.NoError(t, err)

	frames, err := d.Decode([]byte("part"))
	require.NoError(t, err)
	assert.Empty(t, frames)

	d.NotifyProxyStateChange(true)
	assert.True(t, d.InProxy())

	// 握手阶段：已缓冲与新到数据原样透传，不受帧长限制
	frames, err = d.Decode([]byte{0x05, 0x00, '\n', 0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, append([]byte("part"), 0x05, 0x00, '\n', 0x01, 0x02, 0x03, 0x04, 0x05, 0x06), frames[0])

	d.NotifyProxyStateChange(false)
	frames, err = d.Decode([]byte("a\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, strs(frames))
}

func TestNewDelimiterDecoder_Invalid(t *testing.T) {
	_, err := NewDelimiterDecoder(0, true, true, []byte("\n"))
	assert.Error(t, err)
	_, err = NewDelimiterDecoder(8, true, true)
	assert.Error(t, err)
	_, err = NewDelimiterDecoder(8, true, true, []byte{})
	assert.Error(t, err)
}

func TestRawDecoder(t *testing.T) {
	in := []byte("abc")
	frames, err := RawDecoder{}.Decode(in)
	require.NoError(t, err)
	in[0] = 'X'
	assert.Equal(t, []string{"abc"}, strs(frames))

	frames, err = RawDecoder{}.Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, frames)
}
