package config

import (
	"github.com/caarlos0/env/v10"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`

	DBType     string `env:"DBType" envDefault:"sqlite"`
	DSNURL     string `env:"DSN_URL" envDefault:""`
	DBUser     string `env:"DBUser" envDefault:""`
	DBPassword string `env:"DBPassword" envDefault:""`
	DBAddr     string `env:"DBAddr" envDefault:""`
	DBName     string `env:"DBName" envDefault:"usdcai"`
	DBPath     string `env:"DBPath" envDefault:"datas/usdcai.db"`
	DBPort     string `env:"DBPort" envDefault:"3306"`

	StorageType          string `env:"STORAGE_TYPE" envDefault:"local"`
	StorageLocalDir      string `env:"STORAGE_LOCAL_DIR" envDefault:"datas/media"`
	StoragePublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL" envDefault:"/files"`

	// S3 兼容存储配置
	StorageS3Region          string `env:"STORAGE_S3_REGION"`
	StorageS3Bucket          string `env:"STORAGE_S3_BUCKET"`
	StorageS3Prefix          string `env:"STORAGE_S3_PREFIX"`
	StorageS3Endpoint        string `env:"STORAGE_S3_ENDPOINT"`
	StorageS3AccessKeyID     string `env:"STORAGE_S3_ACCESS_KEY_ID"`
	StorageS3SecretAccessKey string `env:"STORAGE_S3_SECRET_ACCESS_KEY"`
	StorageS3SessionToken    string `env:"STORAGE_S3_SESSION_TOKEN"`
	StorageS3ForcePathStyle  bool   `env:"STORAGE_S3_FORCE_PATH_STYLE" envDefault:"false"`

	// 阿里云 OSS 存储配置
	StorageOSSEndpoint        string `env:"STORAGE_OSS_ENDPOINT"`
	StorageOSSBucket          string `env:"STORAGE_OSS_BUCKET"`
	StorageOSSPrefix          string `env:"STORAGE_OSS_PREFIX"`
	StorageOSSAccessKeyID     string `env:"STORAGE_OSS_ACCESS_KEY_ID"`
	StorageOSSAccessKeySecret string `env:"STORAGE_OSS_ACCESS_KEY_SECRET"`

	// 腾讯云 COS 存储配置
	StorageCOSBucketURL string `env:"STORAGE_COS_BUCKET_URL"`
	StorageCOSPrefix    string `env:"STORAGE_COS_PREFIX"`
	StorageCOSSecretID  string `env:"STORAGE_COS_SECRET_ID"`
	StorageCOSSecretKey string `env:"STORAGE_COS_SECRET_KEY"`

	// Cloudflare R2 存储配置
	StorageR2AccountID       string `env:"STORAGE_R2_ACCOUNT_ID"`
	StorageR2Endpoint        string `env:"STORAGE_R2_ENDPOINT"`
	StorageR2Region          string `env:"STORAGE_R2_REGION" envDefault:"auto"`
	StorageR2Bucket          string `env:"STORAGE_R2_BUCKET"`
	StorageR2Prefix          string `env:"STORAGE_R2_PREFIX"`
	StorageR2AccessKeyID     string `env:"STORAGE_R2_ACCESS_KEY_ID"`
	StorageR2SecretAccessKey string `env:"STORAGE_R2_SECRET_ACCESS_KEY"`

	// Circle 开发者托管钱包配置
	CircleAPIBaseURL      string `env:"CIRCLE_API_BASE_URL" envDefault:"https://api.circle.com"`
	CircleAPIKey          string `env:"CIRCLE_API_KEY" envDefault:""`
	CircleEntitySecret    string `env:"CIRCLE_ENTITY_SECRET" envDefault:""`
	CircleWalletSetID     string `env:"CIRCLE_WALLET_SET_ID" envDefault:""`
	CircleBlockchain      string `env:"CIRCLE_BLOCKCHAIN" envDefault:"ETH-SEPOLIA"`
	TreasuryWalletID      string `env:"TREASURY_WALLET_ID" envDefault:""`
	TreasuryWalletAddress string `env:"TREASURY_WALLET_ADDRESS" envDefault:""`

	OpenAIAPIKey     string `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com"`
	MeshyAPIKey      string `env:"MESHY_API_KEY" envDefault:""`
	MeshyBaseURL     string `env:"MESHY_BASE_URL" envDefault:"https://api.meshy.ai"`
	NovitaAPIKey     string `env:"NOVITA_API_KEY" envDefault:""`
	NovitaBaseURL    string `env:"NOVITA_BASE_URL" envDefault:"https://api.novita.ai"`
	VolcengineAPIKey string `env:"VOLCENGINE_API_KEY" envDefault:""`

	// 每次生成的 USDC 价格（十进制字符串），为空或为 0 时跳过扣费
	ChatPriceUSDC    string `env:"CHAT_PRICE_USDC" envDefault:"0.05"`
	ImagePriceUSDC   string `env:"IMAGE_PRICE_USDC" envDefault:"0.10"`
	Model3dPriceUSDC string `env:"MODEL3D_PRICE_USDC" envDefault:"0.25"`
	VideoPriceUSDC   string `env:"VIDEO_PRICE_USDC" envDefault:"0.50"`

	// 每个钱包的演示生成配额
	DemoGenerationLimit int `env:"DEMO_GENERATION_LIMIT" envDefault:"5"`

	// 视频任务超过该时长仍未到终态则标记为失败
	VideoTaskTimeoutMinutes int `env:"VIDEO_TASK_TIMEOUT_MINUTES" envDefault:"30"`

	JWTSecret            string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer            string `env:"JWT_ISSUER" envDefault:"usdc-ai-app"`
	JWTExpirationMinutes int    `env:"JWT_EXPIRATION_MINUTES" envDefault:"1440"`
}

func ParseConfig() (Config, error) {
	var Conf Config
	err := env.Parse(&Conf)
	if err != nil {
		logrus.WithError(err).Error("env.Parse error")
		return Config{}, err
	}
	logrus.Debugf("%#v\n", Conf)
	return Conf, nil
}
