package contracts

// DigitalWillFactoryABI is the ABI of the deployed DigitalWillFactory contract.
const DigitalWillFactoryABI = `
[
{"type":"constructor","inputs":[],"stateMutability":"nonpayable"},
{"type":"receive","stateMutability":"payable"},
{"type":"function","name":"acceptBeneficiary","inputs":[{"name":"_grantor","type":"address"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"approveContractBeneficiary","inputs":[{"name":"_beneficiary","type":"address"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"checkIn","inputs":[],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"claimAsset","inputs":[{"name":"grantor","type":"address"},{"name":"_assetIndex","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"createWill","inputs":[{"name":"_heartbeatInterval","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"depositERC20","inputs":[{"name":"_tokenAddress","type":"address"},{"name":"_amount","type":"uint256"},{"name":"_beneficiary","type":"address"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"depositERC721","inputs":[{"name":"_tokenAddress","type":"address"},{"name":"_tokenId","type":"uint256"},{"name":"_beneficiary","type":"address"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"depositEth","inputs":[{"name":"_beneficiary","type":"address"}],"outputs":[],"stateMutability":"payable"},
{"type":"function","name":"emergencyWithdraw","inputs":[],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"extendHeartbeat","inputs":[{"name":"newInterval","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"getAsset","inputs":[{"name":"_grantor","type":"address"},{"name":"_assetIndex","type":"uint256"}],"outputs":[{"name":"assetType","type":"uint8"},{"name":"tokenAddress","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"amount","type":"uint256"},{"name":"beneficiary","type":"address"},{"name":"claimed","type":"bool"}],"stateMutability":"view"},
{"type":"function","name":"getAssetCount","inputs":[{"name":"_grantor","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
{"type":"function","name":"getBeneficiaryAssets","inputs":[{"name":"_grantor","type":"address"},{"name":"_beneficiary","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}],"stateMutability":"view"},
{"type":"function","name":"getWillInfo","inputs":[{"name":"_grantor","type":"address"}],"outputs":[{"name":"lastCheckIn","type":"uint256"},{"name":"heartbeatInterval","type":"uint256"},{"name":"state","type":"uint8"},{"name":"assetCount","type":"uint256"}],"stateMutability":"view"},
{"type":"function","name":"hasBeneficiaryAccepted","inputs":[{"name":"_grantor","type":"address"},{"name":"_beneficiary","type":"address"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"view"},
{"type":"function","name":"isApprovedBeneficiary","inputs":[{"name":"_grantor","type":"address"},{"name":"_beneficiary","type":"address"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"view"},
{"type":"function","name":"isClaimable","inputs":[{"name":"grantor","type":"address"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"view"},
{"type":"function","name":"modifyHeartbeat","inputs":[{"name":"newInterval","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"onERC721Received","inputs":[{"name":"","type":"address"},{"name":"","type":"address"},{"name":"","type":"uint256"},{"name":"","type":"bytes"}],"outputs":[{"name":"","type":"bytes4"}],"stateMutability":"nonpayable"},
{"type":"function","name":"owner","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
{"type":"function","name":"pause","inputs":[],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"paused","inputs":[],"outputs":[{"name":"","type":"bool"}],"stateMutability":"view"},
{"type":"function","name":"rejectBeneficiary","inputs":[{"name":"_grantor","type":"address"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"removeAsset","inputs":[{"name":"_assetIndex","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"renounceOwnership","inputs":[],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"revokeContractBeneficiary","inputs":[{"name":"_beneficiary","type":"address"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"transferOwnership","inputs":[{"name":"newOwner","type":"address"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"unpause","inputs":[],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"updateBeneficiary","inputs":[{"name":"_assetIndex","type":"uint256"},{"name":"_newBeneficiary","type":"address"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"updateState","inputs":[{"name":"grantor","type":"address"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"event","name":"AssetClaimed","inputs":[{"name":"grantor","type":"address","indexed":true},{"name":"beneficiary","type":"address","indexed":true},{"name":"assetIndex","type":"uint256","indexed":false},{"name":"assetType","type":"uint8","indexed":false},{"name":"tokenAddress","type":"address","indexed":false},{"name":"tokenId","type":"uint256","indexed":false},{"name":"amount","type":"uint256","indexed":false}],"anonymous":false},
{"type":"event","name":"AssetDeposited","inputs":[{"name":"grantor","type":"address","indexed":true},{"name":"assetType","type":"uint8","indexed":false},{"name":"tokenAddress","type":"address","indexed":false},{"name":"tokenId","type":"uint256","indexed":false},{"name":"amount","type":"uint256","indexed":false},{"name":"beneficiary","type":"address","indexed":true}],"anonymous":false},
{"type":"event","name":"AssetRemoved","inputs":[{"name":"grantor","type":"address","indexed":true},{"name":"assetIndex","type":"uint256","indexed":false},{"name":"assetType","type":"uint8","indexed":false},{"name":"tokenAddress","type":"address","indexed":false},{"name":"tokenId","type":"uint256","indexed":false},{"name":"amount","type":"uint256","indexed":false}],"anonymous":false},
{"type":"event","name":"BeneficiaryAccepted","inputs":[{"name":"grantor","type":"address","indexed":true},{"name":"beneficiary","type":"address","indexed":true}],"anonymous":false},
{"type":"event","name":"BeneficiaryRejected","inputs":[{"name":"grantor","type":"address","indexed":true},{"name":"beneficiary","type":"address","indexed":true}],"anonymous":false},
{"type":"event","name":"BeneficiaryUpdated","inputs":[{"name":"grantor","type":"address","indexed":true},{"name":"assetIndex","type":"uint256","indexed":false},{"name":"oldBeneficiary","type":"address","indexed":false},{"name":"newBeneficiary","type":"address","indexed":false}],"anonymous":false},
{"type":"event","name":"CheckIn","inputs":[{"name":"grantor","type":"address","indexed":true},{"name":"timestamp","type":"uint256","indexed":false}],"anonymous":false},
{"type":"event","name":"ContractBeneficiaryApproved","inputs":[{"name":"grantor","type":"address","indexed":true},{"name":"beneficiary","type":"address","indexed":true}],"anonymous":false},
{"type":"event","name":"ContractBeneficiaryRevoked","inputs":[{"name":"grantor","type":"address","indexed":true},{"name":"beneficiary","type":"address","indexed":true}],"anonymous":false},
{"type":"event","name":"EmergencyWithdraw","inputs":[{"name":"grantor","type":"address","indexed":true},{"name":"assetsReturned","type":"uint256","indexed":false}],"anonymous":false},
{"type":"event","name":"HeartbeatExtended","inputs":[{"name":"grantor","type":"address","indexed":true},{"name":"newInterval","type":"uint256","indexed":false}],"anonymous":false},
{"type":"event","name":"HeartbeatModified","inputs":[{"name":"grantor","type":"address","indexed":true},{"name":"oldInterval","type":"uint256","indexed":false},{"name":"newInterval","type":"uint256","indexed":false}],"anonymous":false},
{"type":"event","name":"OwnershipTransferred","inputs":[{"name":"previousOwner","type":"address","indexed":true},{"name":"newOwner","type":"address","indexed":true}],"anonymous":false},
{"type":"event","name":"Paused","inputs":[{"name":"account","type":"address","indexed":false}],"anonymous":false},
{"type":"event","name":"StateUpdated","inputs":[{"name":"grantor","type":"address","indexed":true},{"name":"newState","type":"uint8","indexed":false},{"name":"updater","type":"address","indexed":true}],"anonymous":false},
{"type":"event","name":"Unpaused","inputs":[{"name":"account","type":"address","indexed":false}],"anonymous":false},
{"type":"event","name":"WillCompleted","inputs":[{"name":"grantor","type":"address","indexed":true}],"anonymous":false},
{"type":"event","name":"WillCreated","inputs":[{"name":"grantor","type":"address","indexed":true},{"name":"heartbeatInterval","type":"uint256","indexed":false}],"anonymous":false},
{"type":"error","name":"EnforcedPause","inputs":[]},
{"type":"error","name":"ExpectedPause","inputs":[]},
{"type":"error","name":"OwnableInvalidOwner","inputs":[{"name":"owner","type":"address"}]},
{"type":"error","name":"OwnableUnauthorizedAccount","inputs":[{"name":"account","type":"address"}]},
{"type":"error","name":"ReentrancyGuardReentrantCall","inputs":[]},
{"type":"error","name":"SafeERC20FailedOperation","inputs":[{"name":"token","type":"address"}]}
]
`
