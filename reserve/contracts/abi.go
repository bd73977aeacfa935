package contracts

// ReserveABI covers the reserve contract surface the proxy uses: trading
// switch, trusted-contract registry, withdrawal approvals and execution,
// and balance reads. approvedWithdrawAddresses is keyed by
// keccak256(token ++ address); the proxy computes the key.
const ReserveABI = `[
	{
		"inputs": [],
		"name": "enableTrade",
		"outputs": [
			{"name": "", "type": "bool"}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "disableTrade",
		"outputs": [
			{"name": "", "type": "bool"}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "tradeEnabled",
		"outputs": [
			{"name": "", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "_kyberNetwork", "type": "address"},
			{"name": "_conversionRates", "type": "address"},
			{"name": "_sanityRates", "type": "address"}
		],
		"name": "setContracts",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "kyberNetwork",
		"outputs": [
			{"name": "", "type": "address"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "conversionRatesContract",
		"outputs": [
			{"name": "", "type": "address"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "sanityRatesContract",
		"outputs": [
			{"name": "", "type": "address"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "token", "type": "address"},
			{"name": "addr", "type": "address"},
			{"name": "approve", "type": "bool"}
		],
		"name": "approveWithdrawAddress",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "", "type": "bytes32"}
		],
		"name": "approvedWithdrawAddresses",
		"outputs": [
			{"name": "", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "token", "type": "address"},
			{"name": "amount", "type": "uint256"},
			{"name": "destination", "type": "address"}
		],
		"name": "withdraw",
		"outputs": [
			{"name": "", "type": "bool"}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "token", "type": "address"}
		],
		"name": "getBalance",
		"outputs": [
			{"name": "", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// ConversionRatesABI covers token listing, the two step-function families,
// rate reads, and batch base-rate submission. addToken lists the token and
// enables it for pricing in one call.
const ConversionRatesABI = `[
	{
		"inputs": [
			{"name": "token", "type": "address"},
			{"name": "minimalRecordResolution", "type": "uint256"},
			{"name": "maxPerBlockImbalance", "type": "uint256"},
			{"name": "maxTotalImbalance", "type": "uint256"}
		],
		"name": "addToken",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "token", "type": "address"},
			{"name": "xBuy", "type": "int256[]"},
			{"name": "yBuy", "type": "int256[]"},
			{"name": "xSell", "type": "int256[]"},
			{"name": "ySell", "type": "int256[]"}
		],
		"name": "setQtyStepFunction",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "token", "type": "address"},
			{"name": "xBuy", "type": "int256[]"},
			{"name": "yBuy", "type": "int256[]"},
			{"name": "xSell", "type": "int256[]"},
			{"name": "ySell", "type": "int256[]"}
		],
		"name": "setImbalanceStepFunction",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "token", "type": "address"},
			{"name": "currentBlockNumber", "type": "uint256"},
			{"name": "buy", "type": "bool"},
			{"name": "qty", "type": "uint256"}
		],
		"name": "getRate",
		"outputs": [
			{"name": "", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "tokens", "type": "address[]"},
			{"name": "baseBuy", "type": "uint256[]"},
			{"name": "baseSell", "type": "uint256[]"},
			{"name": "blockNumber", "type": "uint256"}
		],
		"name": "setBaseRate",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// SanityRatesABI covers the optional sanity-rates contract: reference rates
// per source token and reasonable-deviation thresholds in basis points.
const SanityRatesABI = `[
	{
		"inputs": [
			{"name": "srcs", "type": "address[]"},
			{"name": "rates", "type": "uint256[]"}
		],
		"name": "setSanityRates",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "src", "type": "address"},
			{"name": "dest", "type": "address"}
		],
		"name": "getSanityRate",
		"outputs": [
			{"name": "", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "token", "type": "address"}
		],
		"name": "reasonableDiffInBps",
		"outputs": [
			{"name": "", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "addresses", "type": "address[]"},
			{"name": "diffs", "type": "uint256[]"}
		],
		"name": "setReasonableDiff",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`
