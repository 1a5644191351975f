package grademap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"
)

func TestLetterBoundaries(t *testing.T) {
	convey.Convey("Given a table with A=27-29 and A-=24-26", t, func() {
		table := New([]Bracket{
			{Letter: "A-", From: 24, To: 26},
			{Letter: "A", From: 27, To: 29},
		}, DefaultTolerance)

		convey.Convey("A total just under the A boundary maps to A-", func() {
			convey.So(table.Letter(26.9999995), convey.ShouldEqual, "A-")
		})

		convey.Convey("Exactly 27 maps to A", func() {
			convey.So(table.Letter(27.0), convey.ShouldEqual, "A")
		})

		convey.Convey("Rounding noise below the boundary still maps to A", func() {
			convey.So(table.Letter(27-1e-12), convey.ShouldEqual, "A")
		})

		convey.Convey("A total below every bracket has no letter", func() {
			_, ok := table.Lookup(3)
			convey.So(ok, convey.ShouldBeFalse)
			convey.So(table.Letter(3), convey.ShouldEqual, "")
		})
	})
}

func TestDefaultTable(t *testing.T) {
	convey.Convey("Given the built-in table", t, func() {
		table := Default(DefaultTolerance)

		convey.So(table.Letter(33), convey.ShouldEqual, "A+")
		convey.So(table.Letter(30), convey.ShouldEqual, "A+")
		convey.So(table.Letter(29.5), convey.ShouldEqual, "A")
		convey.So(table.Letter(11.99), convey.ShouldEqual, "C-")
		convey.So(table.Letter(0), convey.ShouldEqual, "F")
		convey.So(table.Brackets()[0].Letter, convey.ShouldEqual, "A+")
	})
}

func TestParse(t *testing.T) {
	convey.Convey("Given a side file with two tables", t, func() {
		lines := []string{
			"Grade,To,From",
			"A,100,90",
			"B,89,80",
			"broken",
			"C,79,notanumber",
			",70,60",
			"D,69,50",
			"", "", "", "", "",
			"X,49,0",
		}
		brackets, err := Parse(strings.NewReader(strings.Join(lines, "\n")))

		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Only valid rows of the first table are kept", func() {
			convey.So(brackets, convey.ShouldHaveLength, 3)
			convey.So(brackets[0], convey.ShouldResemble, Bracket{Letter: "A", From: 90, To: 100})
			convey.So(brackets[2].Letter, convey.ShouldEqual, "D")
		})
	})
}

func TestLoad(t *testing.T) {
	convey.Convey("Given a grade map on disk", t, func() {
		path := filepath.Join(t.TempDir(), "Grading_Map.csv")
		err := os.WriteFile(path, []byte("Grade,To,From\nPass,10,5\nFail,4,0\n"), 0o644)
		convey.So(err, convey.ShouldBeNil)

		table := Load(path, DefaultTolerance, zap.NewNop())
		convey.So(table.Letter(7), convey.ShouldEqual, "Pass")
		convey.So(table.Letter(4.5), convey.ShouldEqual, "Fail")
	})

	convey.Convey("Given a missing grade map", t, func() {
		table := Load(filepath.Join(t.TempDir(), "missing.csv"), DefaultTolerance, zap.NewNop())
		convey.So(table.Letter(27), convey.ShouldEqual, "A")
	})
}
