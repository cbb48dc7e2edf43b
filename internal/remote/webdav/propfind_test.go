package webdav

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fileMultistatus = `<?xml version="1.0" encoding="UTF-8"?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/a.txt</D:href>
    <D:propstat>
      <D:prop>
        <D:getlastmodified>Mon, 02 Jan 2006 15:04:05 GMT</D:getlastmodified>
        <D:getcontentlength>42</D:getcontentlength>
        <D:resourcetype/>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`

const dirMultistatus = `<?xml version="1.0" encoding="UTF-8"?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>/docs/</d:href>
    <d:propstat>
      <d:prop>
        <d:getlastmodified>Tue, 03 Jan 2006 10:00:00 GMT</d:getlastmodified>
        <d:resourcetype><d:collection/></d:resourcetype>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
    <d:propstat>
      <d:prop><d:getcontentlength/></d:prop>
      <d:status>HTTP/1.1 404 Not Found</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`

func TestParseStat_File(t *testing.T) {
	info, err := parseStat([]byte(fileMultistatus))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC), info.LastModified)
	assert.Equal(t, int64(42), info.Size)
	assert.False(t, info.IsDir)
}

func TestParseStat_Collection(t *testing.T) {
	info, err := parseStat([]byte(dirMultistatus))
	require.NoError(t, err)
	assert.True(t, info.IsDir)
	assert.Equal(t, int64(0), info.Size)
	assert.Equal(t, 3, info.LastModified.Day())
}

func TestParseStat_Errors(t *testing.T) {
	_, err := parseStat([]byte("not xml"))
	assert.Error(t, err)

	_, err = parseStat([]byte(`<D:multistatus xmlns:D="DAV:"></D:multistatus>`))
	assert.ErrorIs(t, err, errEmptyMultistatus)

	_, err = parseStat([]byte(`<D:multistatus xmlns:D="DAV:"><D:response><D:propstat>
<D:prop><D:getlastmodified>yesterday</D:getlastmodified></D:prop>
<D:status>HTTP/1.1 200 OK</D:status></D:propstat></D:response></D:multistatus>`))
	assert.Error(t, err)
}
