package polymarket

// signer.go — firma local opcional de órdenes (EIP-712, Polygon).
//
// El flujo normal es que el wallet del usuario firme fuera del engine;
// este signer existe para operar el engine con una key propia. Usa la
// order-utils oficial para construir la orden firmada. La aritmética de
// amounts es entera porque el CLOB verifica makerAmount == price *
// takerAmount de forma exacta y rechaza errores de redondeo float.

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/polymarket/go-order-utils/pkg/builder"
	gomodel "github.com/polymarket/go-order-utils/pkg/model"

	"github.com/parlayhub/parlayd/internal/domain"
)

const (
	polygonChainID = int64(137)

	// Taker cero → orden pública
	zeroAddress = "0x0000000000000000000000000000000000000000"
)

// LocalSigner firma órdenes con una private key de Polygon.
// Implementa ports.OrderSigner.
type LocalSigner struct {
	privateKey   *ecdsa.PrivateKey
	address      string
	orderBuilder builder.ExchangeOrderBuilder
	negRisk      bool
}

// NewLocalSigner crea un signer a partir de una private key hex sin prefijo 0x.
func NewLocalSigner(privateKeyHex string, negRisk bool) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("signer: invalid private key: %w", err)
	}

	return &LocalSigner{
		privateKey:   key,
		address:      crypto.PubkeyToAddress(key.PublicKey).Hex(),
		orderBuilder: builder.NewExchangeOrderBuilderImpl(big.NewInt(polygonChainID), nil),
		negRisk:      negRisk,
	}, nil
}

// Address devuelve la dirección del wallet del signer.
func (s *LocalSigner) Address() string {
	return s.address
}

// SignOrder firma una orden construida por el engine.
func (s *LocalSigner) SignOrder(order domain.UnsignedOrder) (domain.SignedOrder, error) {
	makerAmount, takerAmount, err := orderAmounts(order.Price, order.Size)
	if err != nil {
		return domain.SignedOrder{}, fmt.Errorf("signer.SignOrder: %w", err)
	}

	side := gomodel.BUY
	if order.Side == domain.SideSell {
		side = gomodel.SELL
	}

	verifyingContract := gomodel.CTFExchange
	if s.negRisk {
		verifyingContract = gomodel.NegRiskCTFExchange
	}

	orderData := &gomodel.OrderData{
		Maker:         s.address,
		Taker:         zeroAddress,
		TokenId:       order.Market,
		MakerAmount:   strconv.FormatInt(makerAmount, 10),
		TakerAmount:   strconv.FormatInt(takerAmount, 10),
		FeeRateBps:    "0",
		Nonce:         strconv.FormatInt(order.Nonce, 10),
		Signer:        s.address,
		Expiration:    strconv.FormatInt(order.Expiration, 10),
		Side:          side,
		SignatureType: gomodel.EOA,
	}

	signed, err := s.orderBuilder.BuildSignedOrder(s.privateKey, orderData, verifyingContract)
	if err != nil {
		return domain.SignedOrder{}, fmt.Errorf("signer.SignOrder: build: %w", err)
	}

	out := domain.SignedOrder{
		UnsignedOrder: order,
		Salt:          signed.Order.Salt.String(),
		MakerAmount:   signed.Order.MakerAmount.String(),
		TakerAmount:   signed.Order.TakerAmount.String(),
		Signature:     "0x" + hex.EncodeToString(signed.Signature),
		SignatureType: int(signed.Order.SignatureType.Int64()),
	}
	out.Maker = s.address
	return out, nil
}

// orderAmounts convierte price y size (USDC) a amounts enteros en micro-units.
func orderAmounts(price, size float64) (makerAmount, takerAmount int64, err error) {
	if price <= 0 || size <= 0 {
		return 0, 0, fmt.Errorf("invalid order: price=%.4f size=%.4f", price, size)
	}

	pricePrecision := detectPricePrecision(price)
	priceInt := int64(math.Round(price * float64(pricePrecision)))
	sharesCents := int64(math.Floor(size / price * 100))

	amountFactor := int64(1_000_000) / (100 * pricePrecision)
	makerAmount = sharesCents * priceInt * amountFactor
	takerAmount = sharesCents * 10000

	if makerAmount <= 0 || takerAmount <= 0 {
		return 0, 0, fmt.Errorf("invalid amounts: maker=%d taker=%d (price=%.4f size=%.4f)", makerAmount, takerAmount, price, size)
	}
	return makerAmount, takerAmount, nil
}

// detectPricePrecision devuelve el multiplicador según el tick size del market.
// price=0.60 → 100 (tick 0.01), price=0.673 → 1000 (tick 0.001).
func detectPricePrecision(price float64) int64 {
	for _, prec := range []int64{100, 1000, 10000} {
		rounded := math.Round(price * float64(prec))
		if math.Abs(rounded/float64(prec)-price) < 1e-10 {
			return prec
		}
	}
	return 100
}
