package output

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/mci-report-consolidator/internal/dictionary"
	"github.com/mci-report-consolidator/internal/domain"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// WriteJSON streams the dataset as
// {"data": {subject: record}, "dictionary": {term: entry}}.
// Subjects keep record order and dictionary terms keep file order.
func WriteJSON(w io.Writer, records []domain.FlatRecord, dict *dictionary.Dictionary) error {
	stream := jsonAPI.BorrowStream(w)
	defer jsonAPI.ReturnStream(stream)

	stream.WriteObjectStart()
	stream.WriteObjectField("data")
	stream.WriteObjectStart()
	first := true
	for _, rec := range records {
		subject, _ := rec.StringField(domain.SampleField)
		if !first {
			stream.WriteMore()
		}
		first = false
		stream.WriteObjectField(subject)
		writeRecord(stream, rec)
	}
	stream.WriteObjectEnd()

	stream.WriteMore()
	stream.WriteObjectField("dictionary")
	stream.WriteObjectStart()
	for i, e := range dict.Entries() {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(e.Term)
		stream.WriteVal(e)
	}
	stream.WriteObjectEnd()
	stream.WriteObjectEnd()

	if stream.Error != nil {
		return stream.Error
	}
	return stream.Flush()
}

func writeRecord(stream *jsoniter.Stream, rec domain.FlatRecord) {
	stream.WriteObjectStart()
	for i, k := range rec.Keys() {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(k)
		stream.WriteVal(rec[k])
	}
	stream.WriteObjectEnd()
}
