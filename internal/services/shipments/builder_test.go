package shipments

import (
	"context"
	"strings"
	"testing"

	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeGeo struct {
	calls        int
	cityCode     int
	districtCode int
	err          error
}

func (g *fakeGeo) Resolve(ctx context.Context, cityName, districtName string) (int, int, error) {
	g.calls++
	return g.cityCode, g.districtCode, g.err
}

func postalData() models.OrderData {
	return models.OrderData{
		ReferenceID: "REF-1",
		Content:     "kitap",
		Recipient: models.Recipient{
			Postal: &models.PostalAddress{
				FullName:     "Ayşe Yılmaz",
				Address:      "Moda Cad. 1",
				MobilePhone:  "+905551112233",
				CityName:     "İstanbul",
				DistrictName: "Kadıköy",
			},
		},
	}
}

func TestBuilder_Build_PostalDefaults(t *testing.T) {
	geo := &fakeGeo{cityCode: 34, districtCode: 960}
	b := NewBuilder(geo)

	req, err := b.Build(context.Background(), postalData())
	require.NoError(t, err)

	require.Equal(t, "REF-1", req.Order.ReferenceID)
	require.Equal(t, "İrsaliye 1", req.Order.BillOfLadingID)
	require.Equal(t, 1, req.Order.ShipmentServiceType)
	require.Equal(t, 1, req.Order.PackagingType)
	require.Equal(t, 1, req.Order.PaymentType)
	require.Equal(t, 1, req.Order.DeliveryType)
	require.Equal(t, 1, req.Order.SMSPreference1)
	require.NotEmpty(t, req.Order.Barcode)

	require.Equal(t, 34, req.Recipient.CityCode)
	require.Equal(t, 960, req.Recipient.DistrictCode)
	require.Equal(t, "Ayşe Yılmaz", req.Recipient.FullName)
	require.Equal(t, 1, geo.calls)

	require.Len(t, req.OrderPieceList, 1)
	require.Equal(t, "REF-1_PARCA1", req.OrderPieceList[0].Barcode)
	require.Equal(t, 2, req.OrderPieceList[0].Desi)
	require.Equal(t, 1, req.OrderPieceList[0].Kg)
	require.Equal(t, "kitap", req.OrderPieceList[0].Content)
}

func TestBuilder_Build_ContentAndDescriptionDefaults(t *testing.T) {
	geo := &fakeGeo{cityCode: 34, districtCode: 960}
	b := NewBuilder(geo)

	data := postalData()
	data.Content = ""
	data.Description = ""
	data.Pieces = []models.Piece{{}, {}}

	req, err := b.Build(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, "Sipariş", req.Order.Content)
	require.Equal(t, "Sipariş gönderisi", req.Order.Description)
	require.Equal(t, "Parça 1", req.OrderPieceList[0].Content)
	require.Equal(t, "Parça 2", req.OrderPieceList[1].Content)

	data.Content = "kitap"
	data.Description = "kırılacak eşya"
	req, err = b.Build(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, "kitap", req.Order.Content)
	require.Equal(t, "kırılacak eşya", req.Order.Description)
	require.Equal(t, "kitap", req.OrderPieceList[0].Content)
}

func TestBuilder_Build_PieceNumberingAndOverrides(t *testing.T) {
	geo := &fakeGeo{cityCode: 34, districtCode: 960}
	b := NewBuilder(geo)

	data := postalData()
	data.Pieces = []models.Piece{
		{},
		{Barcode: "CUSTOM", Desi: 7, Kg: 3, Content: "cam"},
		{},
	}

	req, err := b.Build(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, req.OrderPieceList, 3)
	require.Equal(t, "REF-1_PARCA1", req.OrderPieceList[0].Barcode)
	require.Equal(t, "CUSTOM", req.OrderPieceList[1].Barcode)
	require.Equal(t, 7, req.OrderPieceList[1].Desi)
	require.Equal(t, 3, req.OrderPieceList[1].Kg)
	require.Equal(t, "cam", req.OrderPieceList[1].Content)
	require.Equal(t, "REF-1_PARCA3", req.OrderPieceList[2].Barcode)
}

func TestBuilder_Build_CustomerModeSkipsGeo(t *testing.T) {
	geo := &fakeGeo{err: errs.NotFound("must not be called")}
	b := NewBuilder(geo)

	req, err := b.Build(context.Background(), models.OrderData{
		ReferenceID: "REF-2",
		Recipient: models.Recipient{
			Customer: &models.CustomerRef{CustomerID: "CUST-9", RefCustomerID: "EXT-9"},
		},
	})
	require.NoError(t, err)
	require.Zero(t, geo.calls)
	require.Equal(t, "CUST-9", req.Recipient.CustomerID)
	require.Equal(t, "EXT-9", req.Recipient.RefCustomerID)
	require.Empty(t, req.Recipient.CityName)
	require.Zero(t, req.Recipient.CityCode)
}

func TestBuilder_Build_RecipientExclusivity(t *testing.T) {
	b := NewBuilder(&fakeGeo{})

	_, err := b.Build(context.Background(), models.OrderData{ReferenceID: "R"})
	require.True(t, errs.IsValidation(err))

	_, err = b.Build(context.Background(), models.OrderData{
		ReferenceID: "R",
		Recipient: models.Recipient{
			Customer: &models.CustomerRef{CustomerID: "C"},
			Postal:   &models.PostalAddress{FullName: "X"},
		},
	})
	require.True(t, errs.IsValidation(err))
}

func TestBuilder_Build_MissingPostalFields(t *testing.T) {
	geo := &fakeGeo{}
	b := NewBuilder(geo)

	data := postalData()
	data.Recipient.Postal.CityName = ""
	_, err := b.Build(context.Background(), data)
	require.True(t, errs.IsValidation(err))
	require.Zero(t, geo.calls)

	data = postalData()
	data.Recipient.Postal.DistrictName = ""
	_, err = b.Build(context.Background(), data)
	require.True(t, errs.IsValidation(err))
	require.Zero(t, geo.calls)
}

func TestBuilder_Build_GeoErrorPropagates(t *testing.T) {
	geo := &fakeGeo{err: errs.NotFound("city not found: FOO")}
	b := NewBuilder(geo)

	_, err := b.Build(context.Background(), postalData())
	require.True(t, errs.IsNotFound(err))
}

func TestBuilder_Build_ReferenceFallbackChain(t *testing.T) {
	geo := &fakeGeo{cityCode: 34, districtCode: 960}
	b := NewBuilder(geo)

	data := postalData()
	data.ReferenceID = ""
	data.InternalID = "10042"
	req, err := b.Build(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, "10042", req.Order.ReferenceID)

	data.InternalID = ""
	req, err = b.Build(context.Background(), data)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(req.Order.ReferenceID, "ORD"))
}

func TestGenerateBarcode(t *testing.T) {
	a := GenerateBarcode("5001")
	b := GenerateBarcode("5001")
	require.True(t, strings.HasPrefix(a, "BC-5001-"))
	require.Len(t, a, len("BC-5001-")+8)
	require.NotEqual(t, a, b)
}
