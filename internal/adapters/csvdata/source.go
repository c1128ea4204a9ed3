package csvdata

// source.go: lectura de datos de mercado preprocesados desde disco.
//
// Layout por símbolo bajo el directorio raíz:
//
//	<root>/<SYMBOL>/ta.csv            date, close, columnas de indicadores
//	<root>/<SYMBOL>/chains/YYMMDD.csv una cadena de opciones por día publicado
//	<root>/<SYMBOL>/splits.csv        date, multiplier (opcional)
//	<root>/<SYMBOL>/scales.csv        name, min, max (opcional)
//
// ta.csv se parsea una sola vez por símbolo y se comparte entre workers;
// las cadenas se leen bajo demanda (el simulador las cachea).

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/callwriter/internal/domain"
	"github.com/alejandrodnm/callwriter/internal/ports"
)

const (
	taFile     = "ta.csv"
	chainsDir  = "chains"
	splitsFile = "splits.csv"
	scalesFile = "scales.csv"

	// smallDate es el formato de nombre de archivo de las cadenas.
	smallDate = "060102"
)

// dateLayouts are tried in order when parsing a date cell.
var dateLayouts = []string{time.DateOnly, smallDate, "20060102", "2006-01-02 15:04:05"}

// Source implementa MarketSource, ChainSource y SplitSource sobre CSVs.
type Source struct {
	root string

	mu     sync.Mutex
	series map[string]*series // símbolo → ta.csv parseado
}

var (
	_ ports.MarketSource = (*Source)(nil)
	_ ports.ChainSource  = (*Source)(nil)
	_ ports.SplitSource  = (*Source)(nil)
)

type series struct {
	columns []string // nombres de indicadores, en orden
	bars    []domain.Bar
}

// NewSource crea un Source con el directorio raíz dado.
func NewSource(root string) *Source {
	return &Source{root: root, series: make(map[string]*series)}
}

func (s *Source) dir(sec domain.Security) string {
	return filepath.Join(s.root, sec.Symbol)
}

// Bars devuelve las barras con start < date <= end, de la más antigua a la más reciente.
func (s *Source) Bars(_ context.Context, sec domain.Security, start, end time.Time) ([]domain.Bar, error) {
	ser, err := s.load(sec)
	if err != nil {
		return nil, err
	}
	start, end = domain.Day(start), domain.Day(end)

	// bars está ordenado: búsqueda binaria de los extremos
	lo := sort.Search(len(ser.bars), func(i int) bool { return ser.bars[i].Date.After(start) })
	hi := sort.Search(len(ser.bars), func(i int) bool { return ser.bars[i].Date.After(end) })
	if lo >= hi {
		return nil, nil
	}
	return ser.bars[lo:hi:hi], nil
}

// AllBars devuelve la serie completa del símbolo.
func (s *Source) AllBars(sec domain.Security) ([]domain.Bar, error) {
	ser, err := s.load(sec)
	if err != nil {
		return nil, err
	}
	return ser.bars[:len(ser.bars):len(ser.bars)], nil
}

// Indicators devuelve los nombres de las columnas de indicadores de ta.csv.
func (s *Source) Indicators(sec domain.Security) ([]string, error) {
	ser, err := s.load(sec)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), ser.columns...), nil
}

func (s *Source) load(sec domain.Security) (*series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ser, ok := s.series[sec.Symbol]; ok {
		return ser, nil
	}

	path := filepath.Join(s.dir(sec), taFile)
	ser, err := readSeries(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("csvdata.Bars: %s: %w", sec, domain.ErrNoMarketData)
		}
		return nil, fmt.Errorf("csvdata.Bars: %s: %w", path, err)
	}
	s.series[sec.Symbol] = ser
	return ser, nil
}

func readSeries(path string) (*series, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	idx := indexColumns(header)
	dateCol, ok := idx["date"]
	if !ok {
		return nil, errors.New("missing date column")
	}
	closeCol, ok := idx["close"]
	if !ok {
		return nil, errors.New("missing close column")
	}

	ser := &series{}
	var indicatorCols []int
	for i, name := range header {
		name = strings.TrimSpace(name)
		// pandas escribe el índice como columna sin nombre
		if i == dateCol || i == closeCol || name == "" {
			continue
		}
		ser.columns = append(ser.columns, name)
		indicatorCols = append(indicatorCols, i)
	}

	for n, row := range rows {
		date, err := parseDate(cell(row, dateCol))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+2, err)
		}
		closePx, err := parseDecimal(cell(row, closeCol))
		if err != nil {
			return nil, fmt.Errorf("line %d: close: %w", n+2, err)
		}
		bar := domain.Bar{Date: date, Close: closePx, Indicators: make([]float64, len(indicatorCols))}
		for j, col := range indicatorCols {
			bar.Indicators[j] = parseFloat(cell(row, col))
		}
		ser.bars = append(ser.bars, bar)
	}
	sort.SliceStable(ser.bars, func(i, j int) bool { return ser.bars[i].Date.Before(ser.bars[j].Date) })
	return ser, nil
}

// ParseChain lee la cadena publicada en date. Si no existe archivo devuelve
// domain.ErrChainNotFound.
func (s *Source) ParseChain(_ context.Context, date time.Time, sec domain.Security) (*domain.OptionChain, error) {
	date = domain.Day(date)
	path := filepath.Join(s.dir(sec), chainsDir, date.Format(smallDate)+".csv")

	header, rows, err := readCSV(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("csvdata.ParseChain: %s %s: %w", sec, date.Format(time.DateOnly), domain.ErrChainNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("csvdata.ParseChain: %s: %w", path, err)
	}

	idx := indexColumns(header)
	for _, col := range []string{"direction", "expiration", "strike", "price"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("csvdata.ParseChain: %s: missing %s column", path, col)
		}
	}
	greek := func(row []string, name string) float64 {
		col, ok := idx[name]
		if !ok {
			return nan
		}
		return scrub(parseFloat(cell(row, col)))
	}

	chain := domain.NewOptionChain(sec, date)
	for n, row := range rows {
		dir, err := domain.ParseDirection(cell(row, idx["direction"]))
		if err != nil {
			return nil, fmt.Errorf("csvdata.ParseChain: %s line %d: %w", path, n+2, err)
		}
		exp, err := parseDate(cell(row, idx["expiration"]))
		if err != nil {
			return nil, fmt.Errorf("csvdata.ParseChain: %s line %d: %w", path, n+2, err)
		}
		strike, err := parseDecimal(cell(row, idx["strike"]))
		if err != nil {
			return nil, fmt.Errorf("csvdata.ParseChain: %s line %d: strike: %w", path, n+2, err)
		}

		contract := domain.Contract{
			Option: domain.NewOption(dir, sec, strike, exp),
			Snapshot: domain.Snapshot{
				Price: priceOrZero(cell(row, idx["price"])),
				Delta: greek(row, "delta"),
				Theta: greek(row, "theta"),
				Vega:  greek(row, "vega"),
				IV:    greek(row, "iv"),
			},
		}
		if err := chain.Add(contract); err != nil {
			return nil, fmt.Errorf("csvdata.ParseChain: %s line %d: %w", path, n+2, err)
		}
	}
	return chain, nil
}

// SnapshotDates lista las fechas con cadena publicada.
func (s *Source) SnapshotDates(_ context.Context, sec domain.Security) ([]time.Time, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir(sec), chainsDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csvdata.SnapshotDates: %s: %w", sec, err)
	}

	dates := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		date, err := time.Parse(smallDate, strings.TrimSuffix(name, ".csv"))
		if err != nil {
			continue // archivos ajenos al layout
		}
		dates = append(dates, domain.Day(date))
	}
	return dates, nil
}

// SplitsFor lee splits.csv. Sin archivo no hay splits.
func (s *Source) SplitsFor(_ context.Context, sec domain.Security) ([]domain.Split, error) {
	path := filepath.Join(s.dir(sec), splitsFile)
	header, rows, err := readCSV(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csvdata.SplitsFor: %s: %w", path, err)
	}

	idx := indexColumns(header)
	dateCol, okDate := idx["date"]
	multCol, okMult := idx["multiplier"]
	if !okDate || !okMult {
		return nil, fmt.Errorf("csvdata.SplitsFor: %s: want date and multiplier columns", path)
	}

	splits := make([]domain.Split, 0, len(rows))
	for n, row := range rows {
		date, err := parseDate(cell(row, dateCol))
		if err != nil {
			return nil, fmt.Errorf("csvdata.SplitsFor: %s line %d: %w", path, n+2, err)
		}
		mult, err := parseDecimal(cell(row, multCol))
		if err != nil {
			return nil, fmt.Errorf("csvdata.SplitsFor: %s line %d: multiplier: %w", path, n+2, err)
		}
		splits = append(splits, domain.Split{Date: date, Multiplier: mult})
	}
	return splits, nil
}

// Scales lee scales.csv (name, min, max). Sin archivo devuelve escalas vacías.
func (s *Source) Scales(sec domain.Security) (domain.Scales, error) {
	path := filepath.Join(s.dir(sec), scalesFile)
	header, rows, err := readCSV(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Scales{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csvdata.Scales: %s: %w", path, err)
	}

	idx := indexColumns(header)
	minCol, okMin := idx["min"]
	maxCol, okMax := idx["max"]
	if !okMin || !okMax {
		return nil, fmt.Errorf("csvdata.Scales: %s: want min and max columns", path)
	}
	nameCol, ok := idx["name"]
	if !ok {
		nameCol = 0 // index_col=0 al estilo pandas
	}

	scales := make(domain.Scales, len(rows))
	for _, row := range rows {
		scales[strings.TrimSpace(cell(row, nameCol))] = domain.Scale{
			Min: parseFloat(cell(row, minCol)),
			Max: parseFloat(cell(row, maxCol)),
		}
	}
	return scales, nil
}

// --- helpers internos ---

func readCSV(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err = r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, errors.New("empty file")
	}
	if err != nil {
		return nil, nil, err
	}
	rows, err = r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return header, rows, nil
}

func indexColumns(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	return idx
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
