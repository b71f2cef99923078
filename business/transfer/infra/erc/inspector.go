// Package erc reads and encodes calls against ERC20, ERC721 and ERC1155
// token contracts.
package erc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/nightfall-sdk/business/transfer/domain"
	"github.com/fd1az/nightfall-sdk/internal/apperror"
	"github.com/fd1az/nightfall-sdk/internal/circuitbreaker"
	"github.com/fd1az/nightfall-sdk/internal/logger"
)

const tracerName = "github.com/fd1az/nightfall-sdk/business/transfer/infra/erc"

// caller is the read-only node surface needed for eth_call.
type caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// errNoResult marks a call that executed but returned nothing decodable,
// as happens when the method does not exist on the contract.
var errNoResult = errors.New("empty or undecodable result")

// Inspector performs token contract reads.
type Inspector struct {
	client   caller
	erc20    abi.ABI
	erc165   abi.ABI
	operator abi.ABI

	logger logger.LoggerInterface
	cb     *circuitbreaker.CircuitBreaker[[]byte]
	tracer trace.Tracer
}

// NewInspector creates a new token inspector.
func NewInspector(client caller, log logger.LoggerInterface) (*Inspector, error) {
	erc20, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}
	erc165, err := abi.JSON(strings.NewReader(ERC165ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc165 ABI: %w", err)
	}
	operator, err := abi.JSON(strings.NewReader(OperatorApprovalABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse operator approval ABI: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig("token-contracts")
	cbCfg.IsSuccessful = isHealthyCall

	return &Inspector{
		client:   client,
		erc20:    erc20,
		erc165:   erc165,
		operator: operator,
		logger:   log,
		cb:       circuitbreaker.New[[]byte](cbCfg),
		tracer:   otel.Tracer(tracerName),
	}, nil
}

// DetectStandard asks the contract which standard it implements. ERC165
// answers decide ERC721 and ERC1155; a contract that does not claim either
// but answers decimals() is taken as ERC20.
func (i *Inspector) DetectStandard(ctx context.Context, token common.Address) (domain.ErcStandard, error) {
	ctx, span := i.tracer.Start(ctx, "erc.detect_standard",
		trace.WithAttributes(attribute.String("token", token.Hex())))
	defer span.End()

	for _, probe := range []struct {
		id  [4]byte
		std domain.ErcStandard
	}{
		{InterfaceIDERC721, domain.ERC721},
		{InterfaceIDERC1155, domain.ERC1155},
	} {
		ok, err := i.supportsInterface(ctx, token, probe.id)
		if err != nil {
			if isNotImplemented(err) {
				break
			}
			return "", err
		}
		if ok {
			span.SetAttributes(attribute.String("standard", string(probe.std)))
			return probe.std, nil
		}
	}

	if _, err := i.Decimals(ctx, token); err != nil {
		if isNotImplemented(err) {
			return "", apperror.New(apperror.CodeUnsupportedToken,
				apperror.WithCause(err),
				apperror.WithContext(token.Hex()))
		}
		return "", err
	}

	span.SetAttributes(attribute.String("standard", string(domain.ERC20)))
	return domain.ERC20, nil
}

// Decimals reads ERC20 decimals().
func (i *Inspector) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := i.call(ctx, token, i.erc20, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, i.decodeError(token, "decimals")
	}
	return d, nil
}

// Allowance reads ERC20 allowance(owner, spender).
func (i *Inspector) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := i.call(ctx, token, i.erc20, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, i.decodeError(token, "allowance")
	}
	return v, nil
}

// IsApprovedForAll reads the ERC721/ERC1155 operator flag.
func (i *Inspector) IsApprovedForAll(ctx context.Context, token, owner, operator common.Address) (bool, error) {
	out, err := i.call(ctx, token, i.operator, "isApprovedForAll", owner, operator)
	if err != nil {
		return false, err
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, i.decodeError(token, "isApprovedForAll")
	}
	return v, nil
}

// ApproveCallData encodes the approval call for std. ERC20 approves
// exactly value; ERC721 and ERC1155 set the operator flag.
func (i *Inspector) ApproveCallData(std domain.ErcStandard, spender common.Address, value *big.Int) ([]byte, error) {
	switch {
	case std == domain.ERC20:
		if value == nil {
			value = new(big.Int)
		}
		return i.erc20.Pack("approve", spender, value)
	case std.IsNFT():
		return i.operator.Pack("setApprovalForAll", spender, true)
	default:
		return nil, apperror.Validation(apperror.CodeUnsupportedToken, string(std))
	}
}

func (i *Inspector) supportsInterface(ctx context.Context, token common.Address, id [4]byte) (bool, error) {
	out, err := i.call(ctx, token, i.erc165, "supportsInterface", id)
	if err != nil {
		return false, err
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, i.decodeError(token, "supportsInterface")
	}
	return v, nil
}

// call packs, executes and unpacks a view call. A revert or an empty
// result wraps errNoResult.
func (i *Inspector) call(ctx context.Context, token common.Address, contract abi.ABI, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}

	result, err := i.cb.Execute(func() ([]byte, error) {
		return i.client.CallContract(ctx, ethereum.CallMsg{
			To:   &token,
			Data: data,
		}, nil)
	})
	if err != nil {
		if isReverted(err) {
			err = fmt.Errorf("%w: %w", errNoResult, err)
		}
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s on %s", method, token.Hex())))
	}

	out, err := contract.Unpack(method, result)
	if err != nil || len(out) == 0 {
		i.logger.Debug(ctx, "undecodable contract result", "token", token.Hex(), "method", method, "bytes", len(result))
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(errNoResult),
			apperror.WithContext(fmt.Sprintf("%s on %s", method, token.Hex())))
	}
	return out, nil
}

func (i *Inspector) decodeError(token common.Address, method string) error {
	return apperror.New(apperror.CodeContractCallFailed,
		apperror.WithCause(errNoResult),
		apperror.WithContext(fmt.Sprintf("%s on %s: unexpected type", method, token.Hex())))
}

// isNotImplemented reports whether err means the contract lacks the method,
// as opposed to the node being unreachable.
func isNotImplemented(err error) bool {
	return errors.Is(err, errNoResult)
}

// isHealthyCall reports whether the node answered, with a result or a
// revert. Only transport failures count against the breaker.
func isHealthyCall(err error) bool {
	return err == nil || isReverted(err)
}

func isReverted(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}
