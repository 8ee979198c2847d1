// Package export は生徒名簿・時間割のファイル出力を提供する。
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/hitoshi/gakuen/internal/model"
)

// WriteStudentsCSV は生徒名簿をCSV形式で書き出す。
// classNamesはクラスIDからクラス名への変換表。未所属の生徒は空欄となる。
func WriteStudentsCSV(w io.Writer, students []*model.Student, classNames map[string]string) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"学籍番号", "名前", "クラス", "入学日"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, s := range students {
		record := []string{
			s.StudentNumber,
			s.Name,
			classNames[s.ClassID],
			s.EnrolledAt.Format("2006-01-02"),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
