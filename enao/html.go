package enao

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Parse reads the everynoise.com page and extracts its genres.
func Parse(r io.Reader) (*Visualization, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("error parsing enao html: %w", err)
	}

	var genres []Genre
	var findErr error
	doc.Find("div.canvas > div").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		genre, err := genreElement{sel}.Genre()
		if err != nil {
			findErr = fmt.Errorf("genre %d: %w", i, err)
			return false
		}
		genres = append(genres, genre)
		return true
	})
	if findErr != nil {
		return nil, findErr
	}
	if len(genres) == 0 {
		return nil, fmt.Errorf("no genres found in enao html")
	}

	return NewVisualization(genres), nil
}

// A genreElement is the div for a single genre. It has methods for looking
// into that div and extracting information.
type genreElement struct{ *goquery.Selection }

func (el genreElement) Genre() (Genre, error) {
	var genre Genre
	var err error
	if genre.Name = el.Name(); genre.Name == "" {
		return genre, fmt.Errorf("genre has no name")
	}
	if genre.Key, err = el.Key(); err != nil {
		return genre, err
	}
	if genre.FontSize, err = el.FontSize(); err != nil {
		return genre, err
	}
	if genre.Example, err = el.Example(); err != nil {
		return genre, err
	}
	return genre, nil
}

// Name strips the "»" link that follows every genre name.
func (el genreElement) Name() string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(el.Text()), "»"))
}

var keyRE = regexp.MustCompile(`^playx\("(\w+)",`)

func (el genreElement) Key() (string, error) {
	onclick, found := el.Attr("onclick")
	if !found {
		return "", fmt.Errorf("genre '%s' has no onclick attribute", el.Name())
	}
	match := keyRE.FindStringSubmatch(onclick)
	if match == nil {
		return "", fmt.Errorf("genre '%s' has unexpected onclick '%s'", el.Name(), onclick)
	}
	return match[1], nil
}

var fontSizeRE = regexp.MustCompile(`font-size: (\d+)%`)

func (el genreElement) FontSize() (int64, error) {
	style, found := el.Attr("style")
	if !found {
		return 0, fmt.Errorf("genre '%s' has no style attribute", el.Name())
	}
	match := fontSizeRE.FindStringSubmatch(style)
	if match == nil {
		return 0, fmt.Errorf("genre '%s' has no font size in '%s'", el.Name(), style)
	}
	fontSize, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing font size from genre '%s': %w", el.Name(), err)
	}
	return fontSize, nil
}

func (el genreElement) Example() (string, error) {
	title, found := el.Attr("title")
	if !found {
		return "", fmt.Errorf("genre '%s' has no title attribute", el.Name())
	}
	return strings.TrimPrefix(title, "e.g. "), nil
}
