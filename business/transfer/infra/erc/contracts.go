package erc

// ERC165 interface ids.
var (
	InterfaceIDERC721  = [4]byte{0x80, 0xac, 0x58, 0xcd}
	InterfaceIDERC1155 = [4]byte{0xd9, 0xb6, 0x7a, 0x26}
)

// ERC20ABI is the ABI for the ERC20 methods used by the approval gate.
const ERC20ABI = `[
	{
		"inputs": [],
		"name": "decimals",
		"outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "owner", "type": "address"},
			{"internalType": "address", "name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "spender", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// ERC165ABI is the ABI for interface detection.
const ERC165ABI = `[
	{
		"inputs": [{"internalType": "bytes4", "name": "interfaceId", "type": "bytes4"}],
		"name": "supportsInterface",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// OperatorApprovalABI covers the operator approval methods shared by
// ERC721 and ERC1155.
const OperatorApprovalABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "owner", "type": "address"},
			{"internalType": "address", "name": "operator", "type": "address"}
		],
		"name": "isApprovedForAll",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "operator", "type": "address"},
			{"internalType": "bool", "name": "approved", "type": "bool"}
		],
		"name": "setApprovalForAll",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`
