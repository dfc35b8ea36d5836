package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsilvagit/deptos/internal/httpclient"
	"github.com/rsilvagit/deptos/internal/model"
)

const emptyPage = `<html><body><p>No encontramos resultados</p></body></html>`

const argenpropPage1 = `<html><body>
<div class="listing__item">
  <a href="/departamento-en-alquiler-en-la-plata-2-ambientes--16812345">
    <p class="card__price">$510.000+ $70.000 expensas</p>
    <p class="card__address">40 e/ 14 y 15</p>
    <ul><li>2 amb.</li></ul>
  </a>
</div>
<div class="listing__item"><p class="card__price">$400.000</p></div>
<div class="listing__item"><a href="/depto--2">Consultar precio</a></div>
<div class="listing__item"><a href="/depto--3"><p class="card__price">USD 500</p></a></div>
</body></html>`

const argenpropPage2 = `<html><body>
<div class="listing__item">
  <a href="/departamento-en-la-plata--999">
    <p class="card__price">$ 450.000</p>
    <span>1 dormitorio</span>
  </a>
</div>
</body></html>`

type pathLog struct {
	mu    sync.Mutex
	paths []string
}

func (p *pathLog) add(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, path)
}

func (p *pathLog) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

func testClient(t *testing.T) *httpclient.Client {
	t.Helper()
	c, err := httpclient.New(httpclient.Options{RatePerSecond: 1000, Burst: 10, MaxRetries: 1, BaseBackoff: time.Millisecond})
	require.NoError(t, err)
	return c
}

func TestArgenpropFetch(t *testing.T) {
	var log pathLog
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r.URL.Path)
		switch r.URL.Path {
		case "/departamentos/alquiler/la-plata":
			w.Write([]byte(argenpropPage1))
		case "/departamentos/alquiler/la-plata-pagina-2":
			w.Write([]byte(argenpropPage2))
		default:
			w.Write([]byte(emptyPage))
		}
	}))
	defer srv.Close()

	a := NewArgenprop(testClient(t), Options{})
	a.baseURL = srv.URL

	listings, err := a.Fetch(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	first := listings[0]
	assert.Equal(t, "argenprop_16812345", first.ID)
	assert.Equal(t, model.Int(510000), first.Price)
	assert.Equal(t, model.Int(70000), first.Expensas)
	assert.Equal(t, model.Int(2), first.Rooms)
	assert.Equal(t, "40 e/ 14 y 15", first.Address)
	assert.Equal(t, srv.URL+"/departamento-en-alquiler-en-la-plata-2-ambientes--16812345", first.URL)
	assert.Equal(t, model.SourceArgenprop, first.Source)

	second := listings[1]
	assert.Equal(t, "argenprop_999", second.ID)
	assert.Equal(t, model.Int(450000), second.Price)
	assert.Nil(t, second.Expensas)
	assert.Equal(t, model.Int(2), second.Rooms)

	assert.Equal(t, []string{
		"/departamentos/alquiler/la-plata",
		"/departamentos/alquiler/la-plata-pagina-2",
		"/departamentos/alquiler/la-plata-pagina-3",
	}, log.all())
}

func TestArgenpropFetchKeepsPartialResultsOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/departamentos/alquiler/la-plata" {
			w.Write([]byte(argenpropPage1))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewArgenprop(testClient(t), Options{})
	a.baseURL = srv.URL

	listings, err := a.Fetch(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "argenprop: page 2")
	require.Len(t, listings, 1)
	assert.Equal(t, "argenprop_16812345", listings[0].ID)
}

const inmobusquedaPage = `<html><body>
<div class="resultadoContenedorDatosResultados">
  <a href="/ficha.php?id=4455">Departamento 2 ambientes 40 e/ 14 y 15</a>
  <div class="resultadoPrecio">$300.000  Expensas : $80000</div>
</div>
<div class="resultadoContenedorDatosResultados">
  <a href="/ficha.php?id=4456">Monoambiente calle 7 n 456, La Plata</a>
  <div class="resultadoPrecio">$ 250.000</div>
  <p>Expensas: $25.000</p>
</div>
<div class="resultadoContenedorDatosResultados">
  <a href="/otra-cosa">Sin ficha</a>
  <div class="resultadoPrecio">$ 100.000</div>
</div>
</body></html>`

func TestInmobusquedaFetch(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Write([]byte(inmobusquedaPage))
	}))
	defer srv.Close()

	in := NewInmobusqueda(testClient(t), Options{InmobusquedaPublicado: "5"})
	in.baseURL = srv.URL

	listings, err := in.Fetch(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, "/departamento-alquiler-la-plata-casco-urbano.html", gotPath)
	assert.Equal(t, "publicado=5", gotQuery)

	assert.Equal(t, "inmobusqueda_4455", listings[0].ID)
	assert.Equal(t, model.Int(300000), listings[0].Price)
	assert.Equal(t, model.Int(80000), listings[0].Expensas)
	assert.Equal(t, model.Int(2), listings[0].Rooms)
	assert.Equal(t, "40 e/ 14 y 15", listings[0].Address)

	assert.Equal(t, "inmobusqueda_4456", listings[1].ID)
	assert.Equal(t, model.Int(250000), listings[1].Price)
	assert.Equal(t, model.Int(25000), listings[1].Expensas)
	assert.Equal(t, model.Int(1), listings[1].Rooms)
	assert.Equal(t, "calle 7 n 456", listings[1].Address)
}

func TestInmobusquedaFetchSkipsCardsWithoutRent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
<div class="resultadoContenedorDatosResultados">
  <a href="/ficha.php?id=7777">Departamento 2 ambientes 40 e/ 14 y 15</a>
  <div class="resultadoPrecio">Consultar Expensas : $80.000</div>
</div>
<div class="resultadoContenedorDatosResultados">
  <a href="/ficha.php?id=7778">Departamento 2 ambientes 50 e/ 8 y 9</a>
  <div class="resultadoPrecio">$ 320.000</div>
</div>
</body></html>`))
	}))
	defer srv.Close()

	in := NewInmobusqueda(testClient(t), Options{})
	in.baseURL = srv.URL

	listings, err := in.Fetch(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "inmobusqueda_7778", listings[0].ID)
	assert.Equal(t, model.Int(320000), listings[0].Price)
}

func TestInmobusquedaFetchReportsFailedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/departamento-alquiler-la-plata-casco-urbano.html" {
			w.Write([]byte(inmobusquedaPage))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	in := NewInmobusqueda(testClient(t), Options{})
	in.baseURL = srv.URL

	listings, err := in.Fetch(context.Background(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inmobusqueda: page 2")
	assert.Len(t, listings, 2)
}

func TestInmobusquedaPageURL(t *testing.T) {
	in := NewInmobusqueda(nil, Options{})
	assert.Equal(t, "https://www.inmobusqueda.com.ar/departamento-alquiler-la-plata-casco-urbano-pagina-2.html", in.pageURL(2))

	in.publicado = "5"
	assert.Equal(t, "https://www.inmobusqueda.com.ar/departamento-alquiler-la-plata-casco-urbano.html?publicado=5", in.pageURL(1))
}

// inlineBrowser runs operations on the calling goroutine.
type inlineBrowser struct {
	err   error
	calls int
}

func (b *inlineBrowser) Do(ctx context.Context, fn func(context.Context) error) error {
	b.calls++
	if b.err != nil {
		return b.err
	}
	return fn(ctx)
}

const zonapropCardText = "$ 450.000\n$ 50.000 Expensas\n50 m² tot.\n2 amb.\n1 baño\nCalle 7 e/ 45 y 46, La Plata\nHermoso depto"

func TestZonapropParseCard(t *testing.T) {
	z := NewZonaprop(&inlineBrowser{}, Options{})

	l, ok, _ := z.parseCard(renderedCard{
		Href: "/propiedades/clasificado/alclapin-depto-2-amb-58127503.html",
		Text: zonapropCardText,
	})
	require.True(t, ok)
	assert.Equal(t, "zonaprop_58127503", l.ID)
	assert.Equal(t, model.Int(450000), l.Price)
	assert.Equal(t, model.Int(50000), l.Expensas)
	assert.Equal(t, model.Int(2), l.Rooms)
	assert.Equal(t, "Calle 7 e/ 45 y 46, La Plata", l.Address)
	assert.Equal(t, "https://www.zonaprop.com.ar/propiedades/clasificado/alclapin-depto-2-amb-58127503.html", l.URL)

	_, ok, reason := z.parseCard(renderedCard{Text: zonapropCardText})
	assert.False(t, ok)
	assert.Equal(t, "missing link", reason)

	_, ok, _ = z.parseCard(renderedCard{Href: "/propiedades/x-1.html", Text: "USD 500\n2 amb."})
	assert.False(t, ok)
}

func TestZonapropFetch(t *testing.T) {
	b := &inlineBrowser{}
	z := NewZonaprop(b, Options{})

	var urls []string
	z.cards = func(_ context.Context, pageURL string) ([]renderedCard, error) {
		urls = append(urls, pageURL)
		if len(urls) == 1 {
			return []renderedCard{
				{Href: "/propiedades/a-1.html", Text: "$ 300.000\n2 amb."},
				{Href: "", Text: "$ 1"},
			}, nil
		}
		return nil, errors.New("navigation failed")
	}

	listings, err := z.Fetch(context.Background(), 3)
	require.Error(t, err)
	assert.Equal(t, "zonaprop: page 2: navigation failed", err.Error())
	require.Len(t, listings, 1)
	assert.Equal(t, "zonaprop_1", listings[0].ID)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, []string{
		"https://www.zonaprop.com.ar/departamentos-alquiler-la-plata-orden-publicado-descendente.html",
		"https://www.zonaprop.com.ar/departamentos-alquiler-la-plata-orden-publicado-descendente-pagina-2.html",
	}, urls)
}

func TestZonapropFetchBrowserFailure(t *testing.T) {
	z := NewZonaprop(&inlineBrowser{err: errors.New("no chrome")}, Options{})

	listings, err := z.Fetch(context.Background(), 1)
	require.Error(t, err)
	assert.Empty(t, listings)
}

func TestMercadolibreParseCard(t *testing.T) {
	ml := NewMercadolibre(&inlineBrowser{}, Options{})
	text := "$\n450.000\n2 ambientes 1 baño 45 m²\n7 y 45, La Plata"

	l, ok, _ := ml.parseCard(renderedCard{
		Href:     "https://departamento.mercadolibre.com.ar/MLA-1234567-depto-2-amb-_JM",
		Text:     text,
		Price:    "450.000",
		Currency: "$",
	})
	require.True(t, ok)
	assert.Equal(t, "mercadolibre_MLA1234567", l.ID)
	assert.Equal(t, model.Int(450000), l.Price)
	assert.Nil(t, l.Expensas)
	assert.Equal(t, model.Int(2), l.Rooms)
	assert.Equal(t, "7 y 45", l.Address)

	tests := []struct {
		name string
		card renderedCard
	}{
		{"dollars", renderedCard{Href: "https://departamento.mercadolibre.com.ar/MLA-1", Price: "500", Currency: "US$"}},
		{"foreign link", renderedCard{Href: "https://example.com/MLA-1", Price: "500"}},
		{"no link", renderedCard{Price: "500"}},
		{"no price", renderedCard{Href: "https://departamento.mercadolibre.com.ar/MLA-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, _ := ml.parseCard(tt.card)
			assert.False(t, ok)
		})
	}
}

func TestMercadolibrePageURL(t *testing.T) {
	ml := NewMercadolibre(&inlineBrowser{}, Options{})
	assert.Equal(t, "https://inmuebles.mercadolibre.com.ar/departamentos/alquiler/la-plata", ml.pageURL(1))
	assert.Equal(t, "https://inmuebles.mercadolibre.com.ar/departamentos/alquiler/la-plata_Desde_49", ml.pageURL(2))
	assert.Equal(t, "https://inmuebles.mercadolibre.com.ar/departamentos/alquiler/la-plata_Desde_97", ml.pageURL(3))
}

func TestMercadolibreFetchStopsOnEmptyPage(t *testing.T) {
	ml := NewMercadolibre(&inlineBrowser{}, Options{})
	pages := 0
	ml.cards = func(context.Context, string) ([]renderedCard, error) {
		pages++
		if pages > 1 {
			return nil, nil
		}
		return []renderedCard{{Href: "https://departamento.mercadolibre.com.ar/MLA-42", Price: "300.000", Text: "2 amb"}}, nil
	}

	listings, err := ml.Fetch(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, 2, pages)
}

func TestPaginateStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var out batch
	calls := 0

	err := paginate(ctx, model.SourceArgenprop, 5, time.Hour, func(context.Context, int) ([]model.Listing, int, error) {
		calls++
		cancel()
		return []model.Listing{{ID: "x"}}, 1, nil
	}, &out)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Len(t, out.all(), 1)
}

func TestSafeCardRecoversPanics(t *testing.T) {
	_, ok := safeCard(model.SourceZonaprop, func() (model.Listing, bool, string) {
		var m map[string]int
		m["boom"]++
		return model.Listing{}, true, ""
	})
	assert.False(t, ok)
}

func TestRegistryAndSelect(t *testing.T) {
	all := Registry(testClient(t), &inlineBrowser{}, Options{})
	require.Len(t, all, 4)

	selected, err := Select(all, []string{"inmobusqueda", "Argenprop"})
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, model.SourceInmobusqueda, selected[0].Name())
	assert.Equal(t, model.SourceArgenprop, selected[1].Name())

	_, err = Select(all, []string{"properati"})
	assert.Error(t, err)
}

func TestAbsURL(t *testing.T) {
	assert.Equal(t, "https://www.argenprop.com/a--1", absURL("https://www.argenprop.com", "/a--1"))
	assert.Equal(t, "https://other.com/x", absURL("https://www.argenprop.com", "https://other.com/x"))
}
